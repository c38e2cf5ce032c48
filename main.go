package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mrxdeploy/SistemaMRX/apiclient"
	"github.com/mrxdeploy/SistemaMRX/assetcache"
	"github.com/mrxdeploy/SistemaMRX/gate"
	"github.com/mrxdeploy/SistemaMRX/geo"
	"github.com/mrxdeploy/SistemaMRX/monitoring"
	"github.com/mrxdeploy/SistemaMRX/notify"
	"github.com/mrxdeploy/SistemaMRX/pages"
	"github.com/mrxdeploy/SistemaMRX/session"
	"github.com/mrxdeploy/SistemaMRX/tokenstore"
	"github.com/mrxdeploy/SistemaMRX/utils"
	"github.com/mrxdeploy/SistemaMRX/widgets/chat"
	"github.com/mrxdeploy/SistemaMRX/widgets/scanner"
)

const serviceName = "gestao-placas-gateway"

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("Starting gateway initialization", "service", serviceName)

	shutdownTelemetry, err := monitoring.Setup(context.Background(), monitoring.Config{ServiceName: serviceName})
	if err != nil {
		slog.Error("Failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("Telemetry shutdown error", "error", err)
		}
	}()

	dbConfig := tokenstore.NewDatabaseConfig()
	db, err := tokenstore.Connect(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to token database", "error", err)
		os.Exit(1)
	}

	store := tokenstore.New(db)
	tokens := store.SourceFor(utils.GetEnvOrDefault("TOKEN_SUBJECT", "navegador"))

	backendURL := utils.GetEnvOrDefault("BACKEND_URL", "http://localhost:5000")
	api := apiclient.New(backendURL, tokens)

	resolver := session.NewResolver(api, tokens)

	wsURL := utils.GetEnvOrDefault("NOTIFY_WS_URL", "ws://localhost:5000/ws")
	listener := notify.NewListener(api, tokens, wsURL)
	api.OnLogout(listener.Disconnect)

	// First session resolution; the access gate holds requests until this
	// finishes.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if _, err := resolver.Load(ctx); err != nil {
			slog.Warn("Initial session load failed", "error", err)
		}
		if err := listener.Connect(ctx); err != nil {
			slog.Warn("Notification socket unavailable", "error", err)
		}
		if _, err := listener.Refresh(ctx); err != nil {
			slog.Debug("Initial badge refresh skipped", "error", err)
		}
	}()

	staticDir := utils.GetEnvOrDefault("STATIC_DIR", "./static")
	cache := assetcache.New(http.FileServer(http.Dir(staticDir)))
	if err := cache.Install(); err != nil {
		slog.Warn("Asset precache incomplete, serving from origin", "error", err)
	}
	cache.Activate()

	geocoder := geo.NewGeocoder()

	chatWidget := chat.NewWidget(api, resolver)
	scannerWidget := scanner.NewWidget(resolver)

	appMux := http.NewServeMux()
	pages.NewHandler(api, tokens, resolver, geocoder).RegisterRoutes(appMux)
	chat.NewHandler(chatWidget).RegisterRoutes(appMux)
	scanner.NewHandler(scannerWidget).RegisterRoutes(appMux)

	// Page navigation goes through the access gate; everything the gate
	// allows is served cache-first.
	appMux.Handle("/", gate.Middleware(resolver, cache.Handler()))

	topLevelMux := http.NewServeMux()
	topLevelMux.Handle("/health", utils.PanicRecoveryMiddleware(utils.HealthHandler(serviceName)))
	topLevelMux.Handle("/metrics", monitoring.Handler())
	topLevelMux.Handle("/", monitoring.HTTPMetricsMiddleware(utils.PanicRecoveryMiddleware(appMux)))

	server := utils.CreateServer(utils.DefaultServerConfig(), topLevelMux)
	if err := utils.StartServerWithGracefulShutdown(server, serviceName); err != nil {
		os.Exit(1)
	}
}

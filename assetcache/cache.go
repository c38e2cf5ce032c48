// Package assetcache serves static assets cache-first from a versioned
// in-memory generation, mirroring an offline asset cache: a fixed list is
// pre-populated at install, stale generations are dropped at activate, and
// dynamic traffic always bypasses the cache.
package assetcache

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mrxdeploy/SistemaMRX/monitoring"
)

// Version names the current cache generation. Bump it to invalidate every
// previously cached asset on the next activate.
const Version = 6

// PrecacheAssets is the fixed list populated at install
var PrecacheAssets = []string{
	"/",
	"/static/css/style.css",
	"/static/js/app.js",
	"/static/manifest.json",
}

type asset struct {
	status int
	header http.Header
	body   []byte
}

// originRecorder captures an origin response so Install can snapshot it
type originRecorder struct {
	status int
	header http.Header
	body   bytes.Buffer
}

func newOriginRecorder() *originRecorder {
	return &originRecorder{status: http.StatusOK, header: make(http.Header)}
}

func (r *originRecorder) Header() http.Header { return r.header }

func (r *originRecorder) WriteHeader(status int) { r.status = status }

func (r *originRecorder) Write(p []byte) (int, error) { return r.body.Write(p) }

// Cache holds the asset generations and the origin handler that produces
// fresh responses
type Cache struct {
	origin http.Handler

	mu          sync.RWMutex
	generations map[string]map[string]asset
	current     string
}

// New creates an asset cache in front of origin
func New(origin http.Handler) *Cache {
	return &Cache{
		origin:      origin,
		generations: make(map[string]map[string]asset),
		current:     fmt.Sprintf("gestao-placas-v%d", Version),
	}
}

// Name returns the current generation name
func (c *Cache) Name() string {
	return c.current
}

// Install pre-populates the current generation with the fixed asset list.
// A non-2xx origin response fails the install so a broken deploy never
// poisons the cache.
func (c *Cache) Install() error {
	entries := make(map[string]asset, len(PrecacheAssets))
	for _, path := range PrecacheAssets {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		if err != nil {
			return fmt.Errorf("caminho de pré-cache inválido %s: %w", path, err)
		}
		rec := newOriginRecorder()
		c.origin.ServeHTTP(rec, req)
		if rec.status < 200 || rec.status >= 300 {
			return fmt.Errorf("falha ao pré-cachear %s: status %d", path, rec.status)
		}
		entries[path] = asset{status: rec.status, header: rec.header.Clone(), body: rec.body.Bytes()}
	}

	c.mu.Lock()
	c.generations[c.current] = entries
	c.mu.Unlock()

	slog.Info("Cache de assets instalado", "geracao", c.current, "assets", len(entries))
	return nil
}

// Activate drops every generation other than the current one
func (c *Cache) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name := range c.generations {
		if name != c.current {
			delete(c.generations, name)
			slog.Info("Geração de cache antiga removida", "geracao", name)
		}
	}
}

// Bypass reports whether the request must always hit the origin: API, auth
// and upload traffic, anything that is not a GET, and versioned script URLs
// (cache-busting query on a .js file).
func Bypass(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return true
	}
	path := r.URL.Path
	if strings.Contains(path, "/api/") || strings.Contains(path, "/auth/") || strings.Contains(path, "/uploads/") {
		return true
	}
	if strings.HasSuffix(path, ".js") && r.URL.RawQuery != "" {
		return true
	}
	return false
}

// Handler serves GET requests cache-first from the current generation and
// falls back to the origin on miss. Misses are not written back; only the
// install list lives in the cache.
func (c *Cache) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Bypass(r) {
			c.origin.ServeHTTP(w, r)
			return
		}

		c.mu.RLock()
		cached, ok := c.generations[c.current][r.URL.Path]
		c.mu.RUnlock()

		monitoring.RecordCacheEvent(r.Context(), c.current, ok)
		if !ok {
			c.origin.ServeHTTP(w, r)
			return
		}

		for key, values := range cached.header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(cached.status)
		_, _ = w.Write(cached.body)
	})
}

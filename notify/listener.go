// Package notify keeps the unread-notification badge current. A WebSocket
// connection authenticated with the bearer token receives push events; each
// event triggers a refresh of the unread count through the REST API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mrxdeploy/SistemaMRX/apiclient"
	"github.com/mrxdeploy/SistemaMRX/monitoring"
)

// EventNewNotification is the push event that invalidates the badge
const EventNewNotification = "nova_notificacao"

type authFrame struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

type event struct {
	Evento string `json:"evento"`
}

// Listener owns the notification socket and the unread count
type Listener struct {
	api    *apiclient.Client
	tokens apiclient.TokenSource
	wsURL  string

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	count  int
}

// NewListener creates a notification listener against wsURL
func NewListener(api *apiclient.Client, tokens apiclient.TokenSource, wsURL string) *Listener {
	return &Listener{api: api, tokens: tokens, wsURL: wsURL}
}

// Count returns the current unread badge value
func (l *Listener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Refresh fetches the unread count from the backend and updates the badge
func (l *Listener) Refresh(ctx context.Context) (int, error) {
	count, err := l.api.UnreadNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("falha ao atualizar notificações: %w", err)
	}

	l.mu.Lock()
	l.count = count
	l.mu.Unlock()
	return count, nil
}

// Connect dials the socket, authenticates with the stored token and starts
// consuming events. Without a token it is a no-op. Calling Connect while
// connected replaces the previous connection.
func (l *Listener) Connect(ctx context.Context) error {
	token, err := l.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	conn, _, err := websocket.Dial(ctx, l.wsURL, nil)
	if err != nil {
		return fmt.Errorf("falha ao conectar websocket de notificações: %w", err)
	}

	var auth authFrame
	auth.Auth.Token = token
	if err := wsjson.Write(ctx, conn, auth); err != nil {
		conn.Close(websocket.StatusInternalError, "falha na autenticação")
		return fmt.Errorf("falha ao autenticar websocket: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	if l.conn != nil {
		l.conn.Close(websocket.StatusNormalClosure, "reconectando")
	}
	l.conn = conn
	l.cancel = cancel
	l.mu.Unlock()

	slog.Info("WebSocket de notificações conectado")
	go l.consume(runCtx, conn)
	return nil
}

func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) {
	for {
		var ev event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() == nil {
				slog.Warn("Leitura do websocket de notificações encerrada", "error", err)
			}
			return
		}

		if ev.Evento != EventNewNotification {
			continue
		}

		monitoring.RecordBusinessEvent(ctx, "notificacao_recebida", true)
		if _, err := l.Refresh(ctx); err != nil {
			slog.Warn("Falha ao atualizar contador de notificações", "error", err)
		}
	}
}

// Disconnect closes the socket and resets the badge. Safe to call at any
// time, including when never connected; wired as a logout hook.
func (l *Listener) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.conn != nil {
		l.conn.Close(websocket.StatusNormalClosure, "logout")
		l.conn = nil
		slog.Info("WebSocket de notificações desconectado")
	}
	l.count = 0
}

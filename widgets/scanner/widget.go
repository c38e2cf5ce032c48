// Package scanner backs the floating scanner shortcut. The widget is a
// handoff to the external scanner system and only admins ever see it.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mrxdeploy/SistemaMRX/models"
	"github.com/mrxdeploy/SistemaMRX/monitoring"
	"github.com/mrxdeploy/SistemaMRX/utils"
)

// DefaultTargetURL is the external scanner system
const DefaultTargetURL = "https://scanv1-production.up.railway.app/"

// readyTimeout bounds how long Init waits for the session to resolve.
// It replaces the old retry schedule (500ms growing by 1.5x) and matches
// its 5s ceiling.
const readyTimeout = 5 * time.Second

// SessionSource supplies the resolved session state
type SessionSource interface {
	Ready() <-chan struct{}
	Snapshot() models.Session
}

// Widget is the scanner shortcut state
type Widget struct {
	sessions  SessionSource
	targetURL string

	mu      sync.Mutex
	enabled bool
	inited  bool
}

// NewWidget creates the scanner widget. The target comes from SCANNER_URL
// when set.
func NewWidget(sessions SessionSource) *Widget {
	return &Widget{
		sessions:  sessions,
		targetURL: utils.GetEnvOrDefault("SCANNER_URL", DefaultTargetURL),
	}
}

// Init decides widget eligibility once the session resolves. The wait is
// bounded so a stuck resolver never blocks the page.
func (w *Widget) Init(ctx context.Context) (bool, error) {
	w.mu.Lock()
	if w.inited {
		enabled := w.enabled
		w.mu.Unlock()
		return enabled, nil
	}
	w.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	select {
	case <-w.sessions.Ready():
	case <-waitCtx.Done():
		return false, fmt.Errorf("sessão não resolvida a tempo: %w", waitCtx.Err())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inited {
		return w.enabled, nil
	}

	sess := w.sessions.Snapshot()
	w.inited = true
	w.enabled = sess.User != nil && sess.User.IsAdmin()
	if !w.enabled {
		slog.Debug("Widget de scanner oculto para usuário não admin")
	}
	return w.enabled, nil
}

// Open returns the external scanner URL for an enabled widget
func (w *Widget) Open(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.enabled {
		return "", fmt.Errorf("widget de scanner não habilitado")
	}
	monitoring.RecordBusinessEvent(ctx, "scanner_aberto", true)
	return w.targetURL, nil
}

// TargetURL returns the configured scanner address
func (w *Widget) TargetURL() string {
	return w.targetURL
}

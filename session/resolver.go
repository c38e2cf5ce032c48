// Package session resolves and owns the per-view session state: who the
// user is and what navigation they are allowed. It is the single writer of
// the session; every other component reads snapshots.
package session

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mrxdeploy/SistemaMRX/apiclient"
	"github.com/mrxdeploy/SistemaMRX/models"
)

// Resolver loads the current user and menu/permission set from the backend
type Resolver struct {
	api    *apiclient.Client
	tokens apiclient.TokenSource

	mu   sync.RWMutex
	sess models.Session

	readyOnce sync.Once
	ready     chan struct{}
}

// NewResolver creates a session resolver
func NewResolver(api *apiclient.Client, tokens apiclient.TokenSource) *Resolver {
	return &Resolver{
		api:    api,
		tokens: tokens,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the first Load completes (successfully or not).
// Dependents (widgets, the access gate) wait on this instead of polling.
func (r *Resolver) Ready() <-chan struct{} {
	return r.ready
}

// Snapshot returns a read-only copy of the session state
func (r *Resolver) Snapshot() models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess := r.sess
	sess.Menus = append([]models.Menu(nil), r.sess.Menus...)
	sess.AllowedPages = append([]string(nil), r.sess.AllowedPages...)
	return sess
}

// Load populates the session from the backend. The current-user and menu
// requests run concurrently; identity failure is authoritative (token
// cleared), menu failure degrades to empty navigation with the user still
// authenticated.
func (r *Resolver) Load(ctx context.Context) (*models.UserProfile, error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		r.store(models.Session{Loaded: true})
		return nil, nil
	}

	var (
		user  *models.UserProfile
		menus *models.MenusResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = r.api.CurrentUser(gctx)
		return err
	})
	g.Go(func() error {
		// Menu failure is non-fatal: degrade to empty navigation
		var err error
		menus, err = r.api.Menus(gctx)
		if err != nil {
			slog.Warn("Falha ao carregar menus, navegação vazia", "error", err)
			menus = nil
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		// Identity could not be established: clear the credential
		slog.Error("Falha ao carregar usuário atual", "error", err)
		if clearErr := r.tokens.Clear(ctx); clearErr != nil {
			slog.Warn("Falha ao limpar token", "error", clearErr)
		}
		r.store(models.Session{Loaded: true})
		return nil, err
	}

	if user == nil {
		// Backend rejected the session (401 handled by the api client)
		r.store(models.Session{Loaded: true})
		return nil, nil
	}

	sess := models.Session{User: user, Loaded: true}
	if menus != nil {
		sess.Menus = menus.Menus
		sess.AllowedPages = menus.PaginasPermitidas
		sess.HideAddButton = menus.OcultarBotaoAdicionar
	}
	r.store(sess)

	slog.Info("Sessão carregada", "user", user.Email, "perfil", user.Perfil, "menus", len(sess.Menus))
	return user, nil
}

func (r *Resolver) store(sess models.Session) {
	r.mu.Lock()
	r.sess = sess
	r.mu.Unlock()
	r.readyOnce.Do(func() { close(r.ready) })
}

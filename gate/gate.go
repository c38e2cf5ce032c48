// Package gate enforces page-level access control. Every decision is
// deny-by-default: a page is reachable only through an explicit allow rule.
package gate

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mrxdeploy/SistemaMRX/models"
	"github.com/mrxdeploy/SistemaMRX/monitoring"
)

// Decision is the outcome of an access check. When Allowed is false,
// Redirect names where to send the browser; an empty Redirect means the
// session is still resolving and the request must wait.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Decide applies the access rules for path against the session state.
//
// Rule order matters: public pages short-circuit everything, then
// authentication, then the admin bypass, then profile restrictions, then
// the permitted-page list.
func Decide(sess models.Session, path string) Decision {
	for _, public := range models.PublicPages {
		if path == public {
			return Decision{Allowed: true}
		}
	}

	if !sess.Loaded {
		return Decision{}
	}

	if sess.User == nil {
		return Decision{Redirect: models.LoginPage}
	}

	if sess.User.IsAdmin() {
		return Decision{Allowed: true}
	}

	if strings.TrimSpace(sess.User.Perfil) == "" || sess.User.Perfil == models.ProfileNone {
		return Decision{Redirect: models.AccessDeniedPage}
	}

	if sess.User.Perfil == models.ProfileAuditoria {
		if path == models.DashboardPage {
			return Decision{Allowed: true}
		}
		return Decision{Redirect: models.DashboardPage}
	}

	if len(sess.AllowedPages) == 0 {
		return Decision{Redirect: models.AccessDeniedPage}
	}

	for _, allowed := range sess.AllowedPages {
		if pageMatches(path, allowed) {
			return Decision{Allowed: true}
		}
	}

	return Decision{Redirect: models.AccessDeniedPage}
}

// pageMatches reports whether path is covered by the allowed entry: exact
// match, suffix match for page files, or prefix match for non-.html route
// entries (ex: "api/producao" covers "/api/producao/ordem/7").
func pageMatches(path, allowed string) bool {
	if path == allowed || strings.HasSuffix(path, allowed) {
		return true
	}
	if !strings.HasSuffix(allowed, ".html") && strings.HasPrefix(path, allowed) {
		return true
	}
	return false
}

// SessionSource supplies the resolved session to the middleware
type SessionSource interface {
	Ready() <-chan struct{}
	Snapshot() models.Session
}

// Middleware gates page requests behind the access rules. It waits for the
// session to resolve before deciding, so no request races the resolver.
func Middleware(sessions SessionSource, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-sessions.Ready():
		case <-r.Context().Done():
			http.Error(w, "Tempo de espera da sessão esgotado", http.StatusServiceUnavailable)
			return
		}

		decision := Decide(sessions.Snapshot(), r.URL.Path)
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		monitoring.RecordBusinessEvent(r.Context(), "acesso_negado", false)
		slog.Warn("Acesso negado à página", "path", r.URL.Path, "redirect", decision.Redirect)

		if decision.Redirect == "" {
			http.Error(w, "Sessão não carregada", http.StatusServiceUnavailable)
			return
		}
		http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
	})
}

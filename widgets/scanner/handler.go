package scanner

import (
	"net/http"

	"github.com/mrxdeploy/SistemaMRX/utils"
)

// StateResponse describes the widget for rendering
type StateResponse struct {
	Habilitado bool   `json:"habilitado"`
	URL        string `json:"url,omitempty"`
}

// Handler exposes the scanner widget over HTTP
type Handler struct {
	widget *Widget
}

// NewHandler creates the scanner widget handler
func NewHandler(widget *Widget) *Handler {
	return &Handler{widget: widget}
}

// RegisterRoutes mounts the widget endpoints on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /widget/scanner", h.State)
	mux.HandleFunc("GET /widget/scanner/abrir", h.Open)
}

// State reports eligibility and the handoff address
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.widget.Init(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Sessão não carregada")
		return
	}

	state := StateResponse{Habilitado: enabled}
	if enabled {
		state.URL = h.widget.TargetURL()
	}
	utils.RespondWithJSON(w, http.StatusOK, state)
}

// Open redirects the browser to the external scanner
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	target, err := h.widget.Open(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "Scanner indisponível para este usuário")
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

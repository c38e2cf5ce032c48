package chat

import (
	"errors"
	"net/http"

	"github.com/mrxdeploy/SistemaMRX/models"
	"github.com/mrxdeploy/SistemaMRX/utils"
)

// MessageRequest is the browser payload for one chat message
type MessageRequest struct {
	Mensagem string `json:"mensagem"`
}

// MessageResponse carries the formatted assistant reply
type MessageResponse struct {
	Resposta   string `json:"resposta"`
	RespostaHT string `json:"resposta_html"`
	Fonte      string `json:"fonte_dados,omitempty"`
	SessaoID   string `json:"sessao_id"`
}

// StateResponse describes the widget for rendering
type StateResponse struct {
	Habilitado bool                 `json:"habilitado"`
	Aberto     bool                 `json:"aberto"`
	SessaoID   string               `json:"sessao_id"`
	Sugestoes  []string             `json:"sugestoes"`
	Mensagens  []models.ChatMessage `json:"mensagens"`
}

// Handler exposes the widget over HTTP for the pages that embed it
type Handler struct {
	widget *Widget
}

// NewHandler creates the chat widget handler
func NewHandler(widget *Widget) *Handler {
	return &Handler{widget: widget}
}

// RegisterRoutes mounts the widget endpoints on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /widget/chat", h.State)
	mux.HandleFunc("POST /widget/chat/mensagem", h.Send)
	mux.HandleFunc("POST /widget/chat/nova-conversa", h.NewConversation)
	mux.HandleFunc("POST /widget/chat/toggle", h.Toggle)
}

// State returns the widget availability and transcript. A conversation
// with no messages yet opens on the welcome greeting.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	utils.GenericHandler(w, r, func() (interface{}, int, error) {
		enabled, err := h.widget.Init(r.Context())
		if err != nil {
			return nil, http.StatusServiceUnavailable, errors.New("Sessão não carregada")
		}

		state := StateResponse{Habilitado: enabled}
		if enabled {
			state.SessaoID = h.widget.SessionID()
			state.Sugestoes = Suggestions
			state.Mensagens = h.widget.Transcript()
			if len(state.Mensagens) == 0 {
				state.Mensagens = []models.ChatMessage{{Texto: MsgWelcome, Role: models.ChatRoleAssistant}}
			}
		}
		return state, http.StatusOK, nil
	})
}

// Send relays one message and returns the assistant reply
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := utils.ParseJSONRequest(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return
	}

	msg, err := h.widget.Send(r.Context(), req.Mensagem)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
		return
	}
	if msg == nil {
		// Empty message or a stale reply, nothing to render
		w.WriteHeader(http.StatusNoContent)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, MessageResponse{
		Resposta:   msg.Texto,
		RespostaHT: FormatReply(msg.Texto),
		Fonte:      msg.Fonte,
		SessaoID:   h.widget.SessionID(),
	})
}

// NewConversation resets the transcript and issues a fresh session id
func (h *Handler) NewConversation(w http.ResponseWriter, r *http.Request) {
	utils.GenericHandler(w, r, func() (interface{}, int, error) {
		return map[string]string{
			"sessao_id": h.widget.NewConversation(),
			"mensagem":  MsgNewConversa,
		}, http.StatusOK, nil
	})
}

// Toggle flips the popup state
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	utils.GenericHandler(w, r, func() (interface{}, int, error) {
		return map[string]bool{"aberto": h.widget.Toggle()}, http.StatusOK, nil
	})
}

// Package chat backs the floating assistant widget. The widget is admin
// only, keeps its own conversation session id, and relays messages to the
// backend assistant without touching the global auth state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mrxdeploy/SistemaMRX/apiclient"
	"github.com/mrxdeploy/SistemaMRX/models"
	"github.com/mrxdeploy/SistemaMRX/monitoring"
)

// Canned assistant messages for the failure modes the relay distinguishes
const (
	MsgWelcome        = "Olá! Sou o assistente inteligente do MRX Systems. Posso ajudar com informações sobre fornecedores, solicitações, cotações de metais e muito mais!"
	MsgNewConversa    = "Nova conversa iniciada! Como posso ajudar?"
	MsgSessionExpired = "Sua sessão expirou. Por favor, faça login novamente."
	MsgGenericError   = "Desculpe, ocorreu um erro. Tente novamente."
	MsgNetworkError   = "Erro de conexão. Verifique sua internet."
	MsgLoginRequired  = "Por favor, faça login para usar o assistente."
)

// Suggestions are the quick-start prompts shown before the first message
var Suggestions = []string{
	"Dados da empresa",
	"Cotação do ouro",
	"Quantos fornecedores ativos?",
}

// SessionSource supplies the resolved session state
type SessionSource interface {
	Ready() <-chan struct{}
	Snapshot() models.Session
}

// Widget holds one assistant conversation. All methods are safe for
// concurrent use.
type Widget struct {
	api      *apiclient.Client
	sessions SessionSource

	mu         sync.Mutex
	enabled    bool
	open       bool
	badge      bool
	sessionID  string
	transcript []models.ChatMessage
	seq        uint64
}

// NewWidget creates the assistant widget
func NewWidget(api *apiclient.Client, sessions SessionSource) *Widget {
	return &Widget{api: api, sessions: sessions}
}

// Init enables the widget once the session resolves. Non-admin users and
// anonymous sessions never get the widget; calling Init again is a no-op.
func (w *Widget) Init(ctx context.Context) (bool, error) {
	select {
	case <-w.sessions.Ready():
	case <-ctx.Done():
		return false, ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enabled {
		return true, nil
	}

	sess := w.sessions.Snapshot()
	if sess.User == nil || !sess.User.IsAdmin() {
		slog.Debug("Widget de chat oculto para usuário não admin")
		return false, nil
	}

	w.enabled = true
	w.sessionID = newSessionID()
	w.transcript = nil
	slog.Info("Widget de chat habilitado", "sessao", w.sessionID)
	return true, nil
}

// Enabled reports whether Init granted the widget
func (w *Widget) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// Toggle flips the popup open state and clears the badge on open
func (w *Widget) Toggle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.open = !w.open
	if w.open {
		w.badge = false
	}
	return w.open
}

// NewConversation discards the transcript and starts a fresh session id
func (w *Widget) NewConversation() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sessionID = newSessionID()
	w.transcript = nil
	return w.sessionID
}

// SessionID returns the current conversation id
func (w *Widget) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// Transcript returns a copy of the conversation so far
func (w *Widget) Transcript() []models.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.ChatMessage(nil), w.transcript...)
}

// Send relays one user message to the assistant and records the reply.
// Each send carries a sequence number; a reply that arrives after a newer
// send started is discarded so the transcript never interleaves stale
// answers. Failures turn into assistant-role messages instead of errors.
func (w *Widget) Send(ctx context.Context, texto string) (*models.ChatMessage, error) {
	texto = strings.TrimSpace(texto)
	if texto == "" {
		return nil, nil
	}

	w.mu.Lock()
	if !w.enabled {
		w.mu.Unlock()
		if w.sessions.Snapshot().User == nil {
			return nil, errors.New(MsgLoginRequired)
		}
		return nil, fmt.Errorf("widget de chat não habilitado")
	}
	w.seq++
	seq := w.seq
	sessionID := w.sessionID
	w.transcript = append(w.transcript, models.ChatMessage{Texto: texto, Role: models.ChatRoleUser})
	w.mu.Unlock()

	reply, err := w.api.Chat(ctx, texto, sessionID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if seq < w.seq {
		// A newer message is already in flight
		slog.Debug("Resposta do assistente descartada por estar obsoleta", "seq", seq)
		return nil, nil
	}

	if err != nil {
		monitoring.RecordBusinessEvent(ctx, "chat_mensagem", false)
		return w.appendAssistant(failureMessage(err), ""), nil
	}

	monitoring.RecordBusinessEvent(ctx, "chat_mensagem", true)
	if reply.SessaoID != "" {
		w.sessionID = reply.SessaoID
	}
	if !w.open {
		w.badge = true
	}
	return w.appendAssistant(reply.Resposta, reply.FonteDados), nil
}

func (w *Widget) appendAssistant(texto, fonte string) *models.ChatMessage {
	msg := models.ChatMessage{Texto: texto, Role: models.ChatRoleAssistant, Fonte: fonte}
	w.transcript = append(w.transcript, msg)
	return &msg
}

// failureMessage maps a relay error to the assistant-voiced text shown in
// the transcript. Session expiry inside the chat never logs the user out.
func failureMessage(err error) string {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return MsgSessionExpired
	}
	var apiErr *apiclient.ApiError
	if errors.As(err, &apiErr) {
		return MsgGenericError
	}
	return MsgNetworkError
}

func newSessionID() string {
	return "widget_" + uuid.NewString()
}

// FormatReply converts the assistant's lightweight markup to HTML:
// **bold** spans, newlines to breaks and leading dashes to bullets.
func FormatReply(texto string) string {
	var b strings.Builder
	for {
		start := strings.Index(texto, "**")
		if start < 0 {
			break
		}
		end := strings.Index(texto[start+2:], "**")
		if end < 0 {
			break
		}
		b.WriteString(texto[:start])
		b.WriteString("<strong>")
		b.WriteString(texto[start+2 : start+2+end])
		b.WriteString("</strong>")
		texto = texto[start+4+end:]
	}
	b.WriteString(texto)

	out := b.String()
	out = strings.ReplaceAll(out, "\n", "<br>")
	out = strings.ReplaceAll(out, "- ", "&bull; ")
	return out
}

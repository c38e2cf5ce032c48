package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/mrxdeploy/SistemaMRX/models"
)

// LoginRequest is the credential payload of POST /auth/login
type LoginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// LoginResponse carries the issued token and the authenticated user
type LoginResponse struct {
	Token   string             `json:"token"`
	Usuario models.UserProfile `json:"usuario"`
}

// Login authenticates against the backend and returns the issued session
func (c *Client) Login(ctx context.Context, email, senha string) (*LoginResponse, error) {
	body, err := json.Marshal(LoginRequest{Email: email, Senha: senha})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	resp, err := c.Request(ctx, http.MethodPost, "/auth/login", bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrUnauthorized
	}

	var login LoginResponse
	if err := resp.Decode(&login); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	return &login, nil
}

// CurrentUser fetches GET /auth/me. A nil user with nil error means the
// backend rejected the session (401 handled globally).
func (c *Client) CurrentUser(ctx context.Context) (*models.UserProfile, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/auth/me", nil, nil)
	if err != nil || resp == nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}

	var user models.UserProfile
	if err := resp.Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to parse current user: %w", err)
	}
	return &user, nil
}

// Menus fetches GET /auth/menus: the permitted navigation and page list
func (c *Client) Menus(ctx context.Context) (*models.MenusResponse, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/auth/menus", nil, nil)
	if err != nil || resp == nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}

	var menus models.MenusResponse
	if err := resp.Decode(&menus); err != nil {
		return nil, fmt.Errorf("failed to parse menus: %w", err)
	}
	return &menus, nil
}

// UnreadNotifications fetches the badge count
func (c *Client) UnreadNotifications(ctx context.Context) (int, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/notificacoes/nao-lidas", nil, nil)
	if err != nil || resp == nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, nil
	}

	var unread models.UnreadCount
	if err := resp.Decode(&unread); err != nil {
		return 0, fmt.Errorf("failed to parse unread count: %w", err)
	}
	return unread.Count, nil
}

// Fornecedores lists the suppliers
func (c *Client) Fornecedores(ctx context.Context) ([]models.Fornecedor, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/fornecedores", nil, nil)
	if err != nil || resp == nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}

	var fornecedores []models.Fornecedor
	if err := resp.Decode(&fornecedores); err != nil {
		return nil, fmt.Errorf("failed to parse suppliers: %w", err)
	}
	return fornecedores, nil
}

// PrecoPorKg fetches the configured per-kg price for a supplier and plate
// type. A 404 (price not configured) yields a zero price, nil error.
func (c *Client) PrecoPorKg(ctx context.Context, fornecedorID int64, tipoPlaca string) (float64, error) {
	path := fmt.Sprintf("/fornecedores/%d/preco/%s", fornecedorID, url.PathEscape(tipoPlaca))
	resp, err := c.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil || resp == nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, nil
	}

	var preco models.PrecoResponse
	if err := resp.Decode(&preco); err != nil {
		return 0, fmt.Errorf("failed to parse price: %w", err)
	}
	return preco.PrecoPorKg, nil
}

// RegistrarPlaca posts a new plate record as multipart form data
func (c *Client) RegistrarPlaca(ctx context.Context, reg models.PlacaRegistro) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"fornecedor_id": reg.FornecedorID,
		"tipo_placa":    reg.TipoPlaca,
		"peso_kg":       reg.PesoKg,
		"valor":         reg.Valor,
	}
	if reg.LocalizacaoLat != "" && reg.LocalizacaoLng != "" {
		fields["localizacao_lat"] = reg.LocalizacaoLat
		fields["localizacao_lng"] = reg.LocalizacaoLng
		if reg.EnderecoCompleto != "" {
			fields["endereco_completo"] = reg.EnderecoCompleto
		}
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if len(reg.Imagem) > 0 {
		part, err := mw.CreateFormFile("imagem", reg.ImagemNome)
		if err != nil {
			return fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(reg.Imagem); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.Request(ctx, http.MethodPost, "/placas", &buf, headers)
	if err != nil {
		return err
	}
	if resp == nil {
		return ErrUnauthorized
	}
	if !resp.OK() {
		return &ApiError{Status: resp.StatusCode, Message: serverMessage(resp.Body)}
	}
	return nil
}

// EstatisticasConferencia fetches GET /conferencia/estatisticas
func (c *Client) EstatisticasConferencia(ctx context.Context) (*models.ConferenciaStats, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/conferencia/estatisticas", nil, nil)
	if err != nil || resp == nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}

	var stats models.ConferenciaStats
	if err := resp.Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to parse conference stats: %w", err)
	}
	return &stats, nil
}

// ConferenciasPorStatus fetches GET /conferencia?status=
func (c *Client) ConferenciasPorStatus(ctx context.Context, status models.ConferenciaStatus) ([]models.Conferencia, error) {
	path := "/conferencia?status=" + url.QueryEscape(string(status))
	resp, err := c.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil || resp == nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, nil
	}

	var conferencias []models.Conferencia
	if err := resp.Decode(&conferencias); err != nil {
		return nil, fmt.Errorf("failed to parse conferences: %w", err)
	}
	return conferencias, nil
}

// EnviarParaAdm escalates a divergent conference to the administration.
// A 409 (already escalated) is returned untouched for the caller to inspect.
func (c *Client) EnviarParaAdm(ctx context.Context, id int64) (*Response, error) {
	path := fmt.Sprintf("/conferencia/%d/enviar-para-adm", id)
	return c.Request(ctx, http.MethodPut, path, nil, nil)
}

// Chat posts a message to the assistant backend. Deliberately bypasses the
// global 401 logout: a mid-conversation expiry is the chat widget's problem,
// not a whole-session event.
func (c *Client) Chat(ctx context.Context, mensagem, sessaoID string) (*models.ChatReply, error) {
	body, err := json.Marshal(map[string]string{
		"mensagem":  mensagem,
		"sessao_id": sessaoID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	resp, err := c.RawRequest(ctx, http.MethodPost, "/assistente/chat", bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &ApiError{Status: resp.StatusCode, Message: serverMessage(resp.Body)}
	}

	var reply models.ChatReply
	if err := resp.Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to parse chat reply: %w", err)
	}
	return &reply, nil
}

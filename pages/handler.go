// Package pages serves the browser-facing endpoints behind the access
// gate: login/logout, the dashboard payload, supplier lookups, plate
// registration and conference actions. Each handler is a thin relay to the
// backend with display formatting applied on the way out.
package pages

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mrxdeploy/SistemaMRX/apiclient"
	"github.com/mrxdeploy/SistemaMRX/format"
	"github.com/mrxdeploy/SistemaMRX/geo"
	"github.com/mrxdeploy/SistemaMRX/models"
	"github.com/mrxdeploy/SistemaMRX/monitoring"
	"github.com/mrxdeploy/SistemaMRX/utils"
)

// maxUploadBytes bounds the plate image upload
const maxUploadBytes = 10 << 20

// TokenWriter persists the credential issued at login
type TokenWriter interface {
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// SessionLoader re-resolves the session after login and logout
type SessionLoader interface {
	Load(ctx context.Context) (*models.UserProfile, error)
}

// Handler holds the page endpoint dependencies
type Handler struct {
	api      *apiclient.Client
	tokens   TokenWriter
	sessions SessionLoader
	geocoder *geo.Geocoder
}

// NewHandler creates the page handler
func NewHandler(api *apiclient.Client, tokens TokenWriter, sessions SessionLoader, geocoder *geo.Geocoder) *Handler {
	return &Handler{api: api, tokens: tokens, sessions: sessions, geocoder: geocoder}
}

// RegisterRoutes mounts the page endpoints on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /pagina/login", h.Login)
	mux.HandleFunc("POST /pagina/logout", h.Logout)
	mux.HandleFunc("GET /pagina/dashboard", h.Dashboard)
	mux.HandleFunc("GET /pagina/fornecedores", h.Fornecedores)
	mux.HandleFunc("GET /pagina/fornecedores/{id}/preco", h.PrecoPorKg)
	mux.HandleFunc("POST /pagina/placas", h.RegistrarPlaca)
	mux.HandleFunc("GET /pagina/conferencias", h.Conferencias)
	mux.HandleFunc("POST /pagina/conferencias/{id}/enviar-para-adm", h.EnviarParaAdm)
}

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type loginResponse struct {
	Usuario     models.UserProfile `json:"usuario"`
	TelaInicial string             `json:"tela_inicial"`
}

// Login authenticates against the backend, persists the issued token and
// reloads the session. The response carries the user's landing page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	utils.JSONHandler(w, r, &req, func() (interface{}, int, error) {
		login, err := h.api.Login(r.Context(), req.Email, req.Senha)
		if err != nil {
			monitoring.RecordBusinessEvent(r.Context(), "login", false)
			return nil, http.StatusUnauthorized, errors.New("Email ou senha inválidos")
		}

		if err := h.tokens.Set(r.Context(), login.Token); err != nil {
			slog.Error("Falha ao persistir token", "error", err)
			return nil, http.StatusInternalServerError, errors.New("Falha ao iniciar sessão")
		}

		if _, err := h.sessions.Load(r.Context()); err != nil {
			slog.Warn("Falha ao recarregar sessão após login", "error", err)
		}

		monitoring.RecordBusinessEvent(r.Context(), "login", true)
		return loginResponse{
			Usuario:     login.Usuario,
			TelaInicial: login.Usuario.HomePage(),
		}, http.StatusOK, nil
	})
}

// Logout removes the token and sends the browser to the login page. The
// socket disconnect runs through the api client's logout hooks.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Clear(r.Context()); err != nil {
		slog.Warn("Falha ao remover token no logout", "error", err)
	}
	if _, err := h.sessions.Load(r.Context()); err != nil {
		slog.Warn("Falha ao recarregar sessão após logout", "error", err)
	}
	http.Redirect(w, r, models.LoginPage, http.StatusSeeOther)
}

type dashboardResponse struct {
	Estatisticas     *models.ConferenciaStats `json:"estatisticas"`
	NotificacoesNao  int                      `json:"notificacoes_nao_lidas"`
	AtualizadoEm     string                   `json:"atualizado_em"`
	AtualizadoEmData string                   `json:"atualizado_em_data"`
}

// Dashboard aggregates the conference statistics and the unread badge
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	utils.GenericHandler(w, r, func() (interface{}, int, error) {
		stats, err := h.api.EstatisticasConferencia(r.Context())
		if err != nil {
			return nil, http.StatusBadGateway, errors.New(apiMessage(err))
		}
		if stats == nil {
			return nil, http.StatusUnauthorized, errors.New("Sessão expirada")
		}

		unread, err := h.api.UnreadNotifications(r.Context())
		if err != nil {
			slog.Warn("Falha ao buscar notificações não lidas", "error", err)
		}

		now := timeNow()
		return dashboardResponse{
			Estatisticas:     stats,
			NotificacoesNao:  unread,
			AtualizadoEm:     format.DataHora(now),
			AtualizadoEmData: format.Data(now),
		}, http.StatusOK, nil
	})
}

type fornecedorView struct {
	ID       int64  `json:"id"`
	Nome     string `json:"nome"`
	CNPJ     string `json:"cnpj"`
	Telefone string `json:"telefone"`
}

// Fornecedores lists suppliers with display masks applied
func (h *Handler) Fornecedores(w http.ResponseWriter, r *http.Request) {
	utils.GenericHandler(w, r, func() (interface{}, int, error) {
		fornecedores, err := h.api.Fornecedores(r.Context())
		if err != nil {
			return nil, http.StatusBadGateway, errors.New(apiMessage(err))
		}

		views := make([]fornecedorView, 0, len(fornecedores))
		for _, f := range fornecedores {
			views = append(views, fornecedorView{
				ID:       f.ID,
				Nome:     f.Nome,
				CNPJ:     format.CNPJ(f.CNPJ),
				Telefone: format.Telefone(f.Telefone),
			})
		}
		return views, http.StatusOK, nil
	})
}

type precoResponse struct {
	PrecoPorKg          float64 `json:"preco_por_kg"`
	PrecoPorKgFormatado string  `json:"preco_por_kg_formatado"`
}

// PrecoPorKg looks up the per-kg price for a supplier and plate type. An
// unknown pairing (backend 404) is an ordinary zero price.
func (h *Handler) PrecoPorKg(w http.ResponseWriter, r *http.Request) {
	utils.GenericHandler(w, r, func() (interface{}, int, error) {
		fornecedorID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("Fornecedor inválido")
		}
		tipoPlaca := r.URL.Query().Get("tipo")
		if tipoPlaca == "" {
			return nil, http.StatusBadRequest, errors.New("Tipo de placa obrigatório")
		}

		preco, err := h.api.PrecoPorKg(r.Context(), fornecedorID, tipoPlaca)
		if err != nil {
			return nil, http.StatusBadGateway, errors.New(apiMessage(err))
		}

		return precoResponse{
			PrecoPorKg:          preco,
			PrecoPorKgFormatado: format.MoedaValor(preco),
		}, http.StatusOK, nil
	})
}

// RegistrarPlaca relays a plate registration upload. When coordinates come
// along, the address is resolved before the relay; geocoder failures still
// register the plate with the coordinate string.
func (h *Handler) RegistrarPlaca(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Formulário inválido")
		return
	}

	reg := models.PlacaRegistro{
		FornecedorID: r.FormValue("fornecedor_id"),
		TipoPlaca:    r.FormValue("tipo_placa"),
		PesoKg:       r.FormValue("peso_kg"),
		Valor:        r.FormValue("valor"),
	}
	if reg.FornecedorID == "" || reg.TipoPlaca == "" || reg.PesoKg == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Fornecedor, tipo e peso são obrigatórios")
		return
	}

	if file, header, err := r.FormFile("imagem"); err == nil {
		defer file.Close()
		imagem, readErr := io.ReadAll(file)
		if readErr != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Falha ao ler imagem")
			return
		}
		reg.Imagem = imagem
		reg.ImagemNome = header.Filename
	}

	latStr := r.FormValue("localizacao_lat")
	lngStr := r.FormValue("localizacao_lng")
	if latStr != "" && lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr == nil && lngErr == nil {
			loc := h.geocoder.Reverse(r.Context(), lat, lng)
			reg.LocalizacaoLat = latStr
			reg.LocalizacaoLng = lngStr
			reg.EnderecoCompleto = loc.Endereco
		}
	}

	if err := h.api.RegistrarPlaca(r.Context(), reg); err != nil {
		monitoring.RecordBusinessEvent(r.Context(), "placa_registrada", false)
		utils.RespondWithError(w, http.StatusBadGateway, apiMessage(err))
		return
	}

	monitoring.RecordBusinessEvent(r.Context(), "placa_registrada", true)
	utils.RespondWithJSON(w, http.StatusCreated, map[string]string{
		"mensagem": "Placa registrada com sucesso",
	})
}

// Conferencias lists reconciliation records filtered by status
func (h *Handler) Conferencias(w http.ResponseWriter, r *http.Request) {
	utils.GenericHandler(w, r, func() (interface{}, int, error) {
		status := models.ConferenciaStatus(r.URL.Query().Get("status"))
		conferencias, err := h.api.ConferenciasPorStatus(r.Context(), status)
		if err != nil {
			return nil, http.StatusBadGateway, errors.New(apiMessage(err))
		}
		if conferencias == nil {
			conferencias = []models.Conferencia{}
		}
		return conferencias, http.StatusOK, nil
	})
}

// EnviarParaAdm forwards a divergent conference to the administrator. A
// backend conflict is surfaced as an inline Portuguese message, not an
// error page.
func (h *Handler) EnviarParaAdm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Conferência inválida")
		return
	}

	resp, err := h.api.EnviarParaAdm(r.Context(), id)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, apiMessage(err))
		return
	}
	if resp == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Sessão expirada")
		return
	}

	if resp.StatusCode == http.StatusConflict {
		utils.RespondWithJSON(w, http.StatusConflict, map[string]string{
			"mensagem": "Esta conferência já foi enviada para o administrador",
		})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"mensagem": "Conferência enviada para aprovação do administrador",
	})
}

// timeNow is swapped in tests
var timeNow = time.Now

// apiMessage extracts the server-supplied message for display
func apiMessage(err error) string {
	var apiErr *apiclient.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Erro na requisição"
}

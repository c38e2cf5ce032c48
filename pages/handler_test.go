package pages

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrxdeploy/SistemaMRX/apiclient"
	"github.com/mrxdeploy/SistemaMRX/geo"
	"github.com/mrxdeploy/SistemaMRX/models"
)

type memoryTokens struct{ token string }

func (m *memoryTokens) Token(ctx context.Context) (string, error) { return m.token, nil }
func (m *memoryTokens) Set(ctx context.Context, token string) error {
	m.token = token
	return nil
}
func (m *memoryTokens) Clear(ctx context.Context) error { m.token = ""; return nil }

type stubLoader struct{ loads int }

func (s *stubLoader) Load(ctx context.Context) (*models.UserProfile, error) {
	s.loads++
	return nil, nil
}

type fixture struct {
	mux     *http.ServeMux
	tokens  *memoryTokens
	loader  *stubLoader
	backend *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := http.NewServeMux()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	tokens := &memoryTokens{token: "tok"}
	loader := &stubLoader{}
	api := apiclient.New(server.URL, tokens)
	handler := NewHandler(api, tokens, loader, geo.NewGeocoder())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return &fixture{mux: mux, tokens: tokens, loader: loader, backend: backend}
}

func TestLogin_PersistsTokenAndReloadsSession(t *testing.T) {
	fx := newFixture(t)
	fx.tokens.token = ""
	fx.backend.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ana@mrx.com", req["email"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token":   "tok-novo",
			"usuario": models.UserProfile{ID: 1, Email: "ana@mrx.com", TelaInicial: "/placas.html"},
		})
	})

	body := `{"email": "ana@mrx.com", "senha": "s3nha"}`
	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pagina/login", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-novo", fx.tokens.token)
	assert.Equal(t, 1, fx.loader.loads)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/placas.html", resp["tela_inicial"])
}

func TestLogin_BadCredentials(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"erro": "credenciais inválidas"}`))
	})

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pagina/login", strings.NewReader(`{"email":"x","senha":"y"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Email ou senha inválidos", resp["erro"])
}

func TestLogin_MalformedBody(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend não deve ser chamado com corpo inválido")
	})

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pagina/login", strings.NewReader(`{"email":`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Corpo da requisição inválido", resp["erro"])
}

func TestLogout_ClearsTokenAndRedirects(t *testing.T) {
	fx := newFixture(t)

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pagina/logout", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Empty(t, fx.tokens.token)
	assert.Equal(t, 1, fx.loader.loads)
}

func TestDashboard_AggregatesStatsAndBadge(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/conferencia/estatisticas", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.ConferenciaStats{Pendentes: 3, Divergentes: 1})
	})
	fx.backend.HandleFunc("/api/notificacoes/nao-lidas", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.UnreadCount{Count: 5})
	})

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pagina/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Estatisticas.Pendentes)
	assert.Equal(t, 5, resp.NotificacoesNao)
	assert.NotEmpty(t, resp.AtualizadoEm)
}

func TestFornecedores_AppliesDisplayMasks(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/fornecedores", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.Fornecedor{
			{ID: 1, Nome: "Sucatas Sul", CNPJ: "12345678000195", Telefone: "41999991234"},
		})
	})

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pagina/fornecedores", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var views []fornecedorView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "12.345.678/0001-95", views[0].CNPJ)
	assert.Equal(t, "(41) 99999-1234", views[0].Telefone)
}

func TestPrecoPorKg_UnknownPairingIsZero(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/fornecedores/7/preco/cobre", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pagina/fornecedores/7/preco?tipo=cobre", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp precoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.0, resp.PrecoPorKg)
	assert.Equal(t, "R$ 0,00", resp.PrecoPorKgFormatado)
}

func placaForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRegistrarPlaca_RelaysUpload(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/placas", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "7", r.FormValue("fornecedor_id"))
		assert.Equal(t, "cobre", r.FormValue("tipo_placa"))
		w.WriteHeader(http.StatusCreated)
	})

	body, contentType := placaForm(t, map[string]string{
		"fornecedor_id": "7",
		"tipo_placa":    "cobre",
		"peso_kg":       "12.5",
		"valor":         "400",
	})
	req := httptest.NewRequest(http.MethodPost, "/pagina/placas", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRegistrarPlaca_RejectsIncompleteForm(t *testing.T) {
	fx := newFixture(t)
	body, contentType := placaForm(t, map[string]string{"fornecedor_id": "7"})
	req := httptest.NewRequest(http.MethodPost, "/pagina/placas", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnviarParaAdm_ConflictIsInlineMessage(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/conferencia/9/enviar-para-adm", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"erro": "já enviada"}`))
	})

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pagina/conferencias/9/enviar-para-adm", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["mensagem"], "já foi enviada")
}

func TestConferencias_FiltersByStatus(t *testing.T) {
	fx := newFixture(t)
	fx.backend.HandleFunc("/api/conferencia", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DIVERGENTE", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode([]models.Conferencia{{ID: 4, Status: models.ConferenciaDivergente}})
	})

	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pagina/conferencias?status=DIVERGENTE", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var conferencias []models.Conferencia
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conferencias))
	require.Len(t, conferencias, 1)
	assert.Equal(t, models.ConferenciaDivergente, conferencias[0].Status)
}

package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrxdeploy/SistemaMRX/models"
)

// memoryTokens is an in-memory TokenSource that counts Clear calls
type memoryTokens struct {
	mu     sync.Mutex
	token  string
	clears int
}

func (m *memoryTokens) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memoryTokens) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.clears++
	return nil
}

func (m *memoryTokens) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

func TestClient_AttachesBearerAndPrefix(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	client := New(backend.URL, &memoryTokens{token: "tok-123"})
	resp, err := client.Request(context.Background(), http.MethodGet, "/auth/me", nil, nil)

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "/api/auth/me", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClient_OmitsAuthorizationWithoutToken(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	client := New(backend.URL, &memoryTokens{})
	_, err := client.Request(context.Background(), http.MethodGet, "/fornecedores", nil, nil)

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_CallerHeadersOverrideDefaults(t *testing.T) {
	var gotContentType string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	headers := http.Header{}
	headers.Set("Content-Type", "multipart/form-data; boundary=x")

	client := New(backend.URL, &memoryTokens{token: "tok"})
	_, err := client.Request(context.Background(), http.MethodPost, "/placas", nil, headers)

	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data; boundary=x", gotContentType)
}

func TestClient_401TriggersSingleLogout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	tokens := &memoryTokens{token: "tok-antigo"}
	client := New(backend.URL, tokens)

	hookCalls := 0
	client.OnLogout(func() { hookCalls++ })

	resp, err := client.Request(context.Background(), http.MethodGet, "/auth/me", nil, nil)

	assert.NoError(t, err)
	assert.Nil(t, resp, "callers must nil-check after a 401")
	assert.Equal(t, 1, tokens.clearCount(), "exactly one token removal per 401")
	assert.Equal(t, 1, hookCalls, "exactly one logout hook invocation per 401")
}

func TestClient_409PassedThroughUntouched(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"erro":"conferência já enviada","conferencia_id":7}`))
	}))
	defer backend.Close()

	client := New(backend.URL, &memoryTokens{token: "tok"})
	resp, err := client.Request(context.Background(), http.MethodPut, "/conferencia/7/enviar-para-adm", nil, nil)

	require.NoError(t, err, "409 must not surface as an error")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "conferencia_id")
}

func TestClient_404IsOrdinaryResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	client := New(backend.URL, &memoryTokens{token: "tok"})
	resp, err := client.Request(context.Background(), http.MethodGet, "/fornecedores/9/preco/verde", nil, nil)

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestClient_ErrorCarriesServerMessage(t *testing.T) {
	t.Run("Erro_Field", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"erro":"peso inválido"}`))
		}))
		defer backend.Close()

		client := New(backend.URL, &memoryTokens{token: "tok"})
		resp, err := client.Request(context.Background(), http.MethodPost, "/placas", nil, nil)

		assert.Nil(t, resp)
		var apiErr *ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "peso inválido", apiErr.Message)
	})

	t.Run("Message_Fallback", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"internal"}`))
		}))
		defer backend.Close()

		client := New(backend.URL, &memoryTokens{token: "tok"})
		_, err := client.Request(context.Background(), http.MethodGet, "/auth/menus", nil, nil)

		var apiErr *ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "internal", apiErr.Message)
	})

	t.Run("Generic_Fallback", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`not json`))
		}))
		defer backend.Close()

		client := New(backend.URL, &memoryTokens{token: "tok"})
		_, err := client.Request(context.Background(), http.MethodGet, "/auth/menus", nil, nil)

		var apiErr *ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Erro na requisição", apiErr.Message)
	})
}

func TestClient_TransportFailurePropagates(t *testing.T) {
	// Point at a closed server
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	client := New(backend.URL, &memoryTokens{token: "tok"})
	resp, err := client.Request(context.Background(), http.MethodGet, "/auth/me", nil, nil)

	assert.Nil(t, resp)
	assert.Error(t, err)
}

func TestClient_ChatBypassesGlobalLogout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	tokens := &memoryTokens{token: "tok"}
	client := New(backend.URL, tokens)

	_, err := client.Chat(context.Background(), "Cotação do ouro", "widget_abc")

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, tokens.clearCount(), "chat 401 must not clear the global token")
}

func TestClient_ChatAdoptsEchoedSession(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resposta":"**Ouro**: R$ 300,00","sessao_id":"widget_srv","fonte_dados":"cotacoes"}`))
	}))
	defer backend.Close()

	client := New(backend.URL, &memoryTokens{token: "tok"})
	reply, err := client.Chat(context.Background(), "Cotação do ouro", "widget_abc")

	require.NoError(t, err)
	assert.Equal(t, "widget_srv", reply.SessaoID)
	assert.Equal(t, "cotacoes", reply.FonteDados)
}

func TestClient_CurrentUserParsesProfile(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":3,"nome":"Maria","email":"maria@mrx.com.br","tipo":"padrao","perfil":"Motorista","tela_inicial":"/dashboard.html"}`))
	}))
	defer backend.Close()

	client := New(backend.URL, &memoryTokens{token: "tok"})
	user, err := client.CurrentUser(context.Background())

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Motorista", user.Perfil)
	assert.Equal(t, models.UserTypeStandard, user.Tipo)
	assert.False(t, user.IsAdmin())
}

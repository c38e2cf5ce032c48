// Package apiclient talks to the gestao-placas REST backend. It owns the
// bearer header, the /api prefix and the normalization of the three response
// classes every caller cares about: unauthorized, conflict, and generic
// error/success.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mrxdeploy/SistemaMRX/monitoring"
)

const apiPrefix = "/api"

// ErrUnauthorized is returned by raw calls that opt out of the global
// 401 logout side effect (the chat relay).
var ErrUnauthorized = errors.New("não autorizado")

// TokenSource supplies and clears the bearer credential
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// ApiError carries the server-supplied failure message for non-2xx responses
type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// Response is a fully-read backend response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into target
func (r *Response) Decode(target interface{}) error {
	return json.Unmarshal(r.Body, target)
}

// Client issues requests to the backend API. At most one network round trip
// per call; no retry, no backoff. Timeouts come from the caller's context.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client

	mu          sync.Mutex
	logoutHooks []func()
}

// New creates a backend API client
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{},
	}
}

// OnLogout registers a hook run when a 401 forces the global logout
// (socket disconnect, badge reset). Hooks run once per 401, in
// registration order.
func (c *Client) OnLogout(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutHooks = append(c.logoutHooks, hook)
}

// Request issues one call to the backend with the fixed /api prefix.
// Caller headers are merged over the defaults (Content-Type json plus
// Authorization when a token is stored).
//
// Normalization contract:
//   - 401: the token is cleared, logout hooks fire, and (nil, nil) is
//     returned. Callers MUST nil-check.
//   - 409: the raw response is returned untouched for conflict inspection.
//   - 404: passed through as an ordinary response.
//   - other non-2xx: an *ApiError with the server's erro/message field.
func (c *Client) Request(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*Response, error) {
	resp, err := c.do(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logout(ctx)
		return nil, nil
	}

	if resp.StatusCode == http.StatusConflict {
		return resp, nil
	}

	if !resp.OK() && resp.StatusCode != http.StatusNotFound {
		return nil, &ApiError{Status: resp.StatusCode, Message: serverMessage(resp.Body)}
	}

	return resp, nil
}

// RawRequest issues a call without the 401 logout side effect. A 401 is
// reported as ErrUnauthorized so the caller can degrade locally.
func (c *Client) RawRequest(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*Response, error) {
	resp, err := c.do(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, values := range headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	monitoring.RecordExternalCall(ctx, "backend", method+" "+path, time.Since(start), err)
	if err != nil {
		slog.Error("Erro na API", "path", path, "method", method, "error", err)
		return nil, fmt.Errorf("request to backend failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

// logout clears the token and runs the registered hooks. The redirect to
// the login page happens on the next gated request, which will see an
// empty session.
func (c *Client) logout(ctx context.Context) {
	if err := c.tokens.Clear(ctx); err != nil {
		slog.Error("Failed to clear token on 401", "error", err)
	}

	c.mu.Lock()
	hooks := make([]func(), len(c.logoutHooks))
	copy(hooks, c.logoutHooks)
	c.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	slog.Warn("Sessão encerrada pelo backend (401)")
}

// serverMessage extracts the backend's error text, preferring the erro
// field, then message/mensagem, then a generic fallback.
func serverMessage(body []byte) string {
	var payload struct {
		Erro     string `json:"erro"`
		Message  string `json:"message"`
		Mensagem string `json:"mensagem"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Erro != "":
			return payload.Erro
		case payload.Message != "":
			return payload.Message
		case payload.Mensagem != "":
			return payload.Mensagem
		}
	}
	return "Erro na requisição"
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/remedy/agent"
	"github.com/civicworks/remedy/executor"
)

type stubRunner struct {
	state   agent.State
	err     error
	lastReq executor.Request
	trigger string
}

func (r *stubRunner) Submit(ctx context.Context, trigger string, req executor.Request, timeout time.Duration) (agent.State, error) {
	r.trigger = trigger
	r.lastReq = req
	return r.state, r.err
}

func newTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	s, err := New(runner, ServerOptions{
		Addr:          "127.0.0.1:0",
		APIKey:        "test-key",
		ManualTimeout: time.Second,
	})
	require.NoError(t, err)
	return s
}

func doTrigger(s *Server, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/trigger", strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rr := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rr, req)
	return rr
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(&stubRunner{}, ServerOptions{Addr: "127.0.0.1:0"})
	assert.Error(t, err)
}

func TestNewRequiresTLSFiles(t *testing.T) {
	_, err := New(&stubRunner{}, ServerOptions{
		Addr:   "127.0.0.1:0",
		APIKey: "key",
		TLS:    true,
	})
	assert.Error(t, err)
}

func TestTriggerRequiresAuth(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	rr := doTrigger(s, "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doTrigger(s, "wrong-key", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTriggerMalformedAuthHeader(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	req := httptest.NewRequest("POST", "/api/v1/trigger", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "test-key")
	rr := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTriggerSuccess(t *testing.T) {
	runner := &stubRunner{state: agent.State{Status: "notification sent"}}
	s := newTestServer(t, runner)

	rr := doTrigger(s, "test-key", `{"template":"Hello {{.Name}}"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "notification sent", resp.Status)
	assert.Equal(t, executor.TriggerManual, runner.trigger)
	assert.Equal(t, "Hello {{.Name}}", runner.lastReq.Template)
	assert.False(t, runner.lastReq.SkipDispatch)
}

func TestTriggerNilRunner(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doTrigger(s, "test-key", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "agent not initialized", resp.Status)
}

func TestTriggerTimeout(t *testing.T) {
	s := newTestServer(t, &stubRunner{err: executor.ErrTimeout})

	rr := doTrigger(s, "test-key", `{}`)
	require.Equal(t, http.StatusGatewayTimeout, rr.Code)

	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Status, "timed out")
}

func TestTriggerPoolClosed(t *testing.T) {
	s := newTestServer(t, &stubRunner{err: executor.ErrClosed})

	rr := doTrigger(s, "test-key", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestTriggerBadJSON(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	rr := doTrigger(s, "test-key", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthUnauthenticated(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsUnauthenticated(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

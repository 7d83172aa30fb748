package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agentq/internal/metrics"
	"agentq/internal/runner"
	"agentq/internal/script"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRunningManager(t *testing.T) *runner.Manager {
	t.Helper()
	tr := runner.TransportFunc(func(ctx context.Context, req runner.Request) (*runner.Response, error) {
		return &runner.Response{Status: 500, Body: []byte("down")}, nil
	})
	m, err := runner.NewManager(runner.Config{Agents: 2, Pacing: 5 * time.Millisecond}, runner.WithTransport(tr))
	require.NoError(t, err)
	require.NoError(t, m.AddRequest(script.RequestSpec{Method: "GET", URL: "http://target/", Repeat: 1}))
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	m, err := runner.NewManager(runner.Config{Agents: 1})
	require.NoError(t, err)
	s := NewServer(":0", m, nil, zerolog.Nop())

	w := do(t, s.Handler(), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = do(t, s.Handler(), http.MethodGet, "/v1/agents")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRunAndAgents(t *testing.T) {
	m := newRunningManager(t)
	s := NewServer(":0", m, metrics.NewRegistry(m), zerolog.Nop())
	require.Eventually(t, func() bool { return m.Errors().Pending() >= 4 }, 2*time.Second, 5*time.Millisecond)

	w := do(t, s.Handler(), http.MethodGet, "/v1/run")
	require.Equal(t, http.StatusOK, w.Code)
	var run RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, m.RunID(), run.RunID)
	assert.Equal(t, "running", run.State)
	assert.Equal(t, 2, run.Agents)
	assert.True(t, run.AgentsStarted)
	assert.Equal(t, run.Requests, run.Errors)
	assert.Positive(t, run.PendingErrors)
	assert.Positive(t, m.Errors().Pending(), "reading the run does not drain errors")

	w = do(t, s.Handler(), http.MethodGet, "/v1/agents")
	require.Equal(t, http.StatusOK, w.Code)
	var agents []AgentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agents))
	require.Len(t, agents, 2)
	assert.Equal(t, 1, agents[0].Agent)
	assert.Equal(t, "running", agents[0].Status)

	w = do(t, s.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `agentq_agent_errors_total{agent="1"}`))
	assert.Contains(t, w.Body.String(), "agentq_run_state 1")
}

func TestStopEndpoint(t *testing.T) {
	m := newRunningManager(t)
	s := NewServer(":0", m, nil, zerolog.Nop())

	w := do(t, s.Handler(), http.MethodPost, "/v1/stop")
	require.Equal(t, http.StatusOK, w.Code)
	var run RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "stopped", run.State)
	assert.Equal(t, runner.StateStopped, m.State())

	w = do(t, s.Handler(), http.MethodPost, "/v1/stop")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s.Handler(), http.MethodGet, "/v1/stop")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerListens(t *testing.T) {
	m, err := runner.NewManager(runner.Config{Agents: 1})
	require.NoError(t, err)
	s := NewServer("127.0.0.1:0", m, nil, zerolog.Nop())
	addr, err := s.Start()
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	resp, err := http.Get("http://" + addr.String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

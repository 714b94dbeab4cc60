package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagents/deepsearch"
	"github.com/openagents/deepsearch/agent"
	"github.com/openagents/deepsearch/config"
	"github.com/openagents/deepsearch/model"
	"github.com/openagents/deepsearch/rerank"
	"github.com/openagents/deepsearch/search"
)

type stubProvider struct {
	name    string
	err     error
	started chan struct{}
	release chan struct{}
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(ctx context.Context, query string, _ search.Options) ([]search.Result, error) {
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return []search.Result{{Title: "Result", URL: "https://example.com", Snippet: "snippet"}}, nil
}

type stubReranker struct{}

func (stubReranker) Name() string { return "jina" }

func (stubReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]rerank.Document, error) {
	return rerank.NoOp{}.Rerank(ctx, query, docs, topN)
}

func testConfig() *config.Config {
	return &config.Config{
		Addr:              ":0",
		MaxInFlight:       0,
		ShutdownTimeout:   time.Second,
		SerperAPIKey:      "serper-key",
		JinaAPIKey:        "jina-key",
		OpenRouterAPIKey:  "or-key",
		DefaultModel:      "openrouter/test/model",
		SearchModel:       "openrouter/test/model",
		OrchestratorModel: "openrouter/test/model",
	}
}

func newTestServer(t *testing.T, provider *stubProvider, cfg *config.Config) *Server {
	t.Helper()
	llm := model.NewMockModel("test-model", "mock")
	searchAgent := agent.NewDeepSearchAgent(provider, stubReranker{}, llm)

	providers := search.NewRegistry()
	providers.Register(provider)

	now := func() time.Time { return time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC) }
	svc, err := deepsearch.NewService(searchAgent, func(o *deepsearch.Options) {
		o.Now = now
		o.Providers = providers
	})
	require.NoError(t, err)

	return New(svc, cfg)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "March 14, 2025", body["date"])
	assert.Equal(t, []any{"deep_search_serper_jina"}, body["active_agents"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestConfig(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "openrouter/test/model", body["default_model"])
	assert.Equal(t, []any{"serper"}, body["available_providers"])
	assert.Equal(t, []any{"jina"}, body["available_rerankers"])
	assert.Equal(t, false, body["react_available"])
	assert.Equal(t, config.Version, body["version"])
}

func TestQuery(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())

	rec := postJSON(t, srv.Handler(), "/query", map[string]any{
		"query": "tallest mountain",
		"mode":  "default",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["response"])
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "deep_search_serper_jina", meta["agent"])
	assert.Equal(t, "serper", meta["search_provider"])
	assert.Equal(t, "March 14, 2025", meta["date"])
}

func TestQuery_EmptyQuery(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())

	rec := postJSON(t, srv.Handler(), "/query", map[string]any{"query": ""})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "query must not be empty")
}

func TestQuery_InvalidBody(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "invalid request body")
}

func TestQuery_UnknownMode(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())

	rec := postJSON(t, srv.Handler(), "/query", map[string]any{"query": "q", "mode": "turbo"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "unknown mode")
}

func TestQuery_AgentFailureIs500(t *testing.T) {
	provider := &stubProvider{name: "serper", err: errors.New("search backend down")}
	srv := newTestServer(t, provider, testConfig())

	rec := postJSON(t, srv.Handler(), "/query", map[string]any{"query": "q", "mode": "default"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "search backend down")
}

func TestConfigureAgent_NoFactory(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())

	rec := postJSON(t, srv.Handler(), "/configure-agent", map[string]any{
		"search_provider": "searxng",
		"reranker":        "infinity",
	})

	// The test service has no agent factory wired, so registration is a
	// request error.
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "not configured")
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t, &stubProvider{name: "serper"}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied-id", rec.Header().Get("X-Request-ID"))
}

func TestInFlightLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 1

	provider := &stubProvider{
		name:    "serper",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	srv := newTestServer(t, provider, cfg)
	h := srv.Handler()

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() {
		firstDone <- postJSON(t, h, "/query", map[string]any{"query": "slow", "mode": "default"})
	}()

	// Wait until the first request is inside the handler, then the second
	// must be rejected immediately.
	<-provider.started
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "too many in-flight requests")

	close(provider.release)
	first := <-firstDone
	assert.Equal(t, http.StatusOK, first.Code)
}

package deepsearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagents/deepsearch/agent"
	"github.com/openagents/deepsearch/intent"
	"github.com/openagents/deepsearch/model"
	"github.com/openagents/deepsearch/rerank"
	"github.com/openagents/deepsearch/search"
	"github.com/openagents/deepsearch/tool"
)

type stubProvider struct {
	name      string
	lastQuery string
	lastCount int
	err       error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(_ context.Context, query string, opts search.Options) ([]search.Result, error) {
	p.lastQuery = query
	p.lastCount = opts.Count
	if p.err != nil {
		return nil, p.err
	}
	return []search.Result{{Title: "Result", URL: "https://example.com", Snippet: "snippet"}}, nil
}

type fakeAgent struct {
	name      string
	answer    string
	err       error
	lastQuery string
}

func (a *fakeAgent) Name() string        { return a.name }
func (a *fakeAgent) Description() string { return a.name }

func (a *fakeAgent) Run(_ context.Context, query string) (string, error) {
	a.lastQuery = query
	return a.answer, a.err
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)
}

const fixedDate = "March 14, 2025"

func newSearchAgent(provider, reranker string) (*agent.DeepSearchAgent, *stubProvider) {
	p := &stubProvider{name: provider}
	llm := model.NewMockModel("test-model", "mock")
	return agent.NewDeepSearchAgent(p, namedReranker{name: reranker}, llm), p
}

type namedReranker struct {
	name string
}

func (r namedReranker) Name() string { return r.name }

func (r namedReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]rerank.Document, error) {
	return rerank.NoOp{}.Rerank(ctx, query, docs, topN)
}

type serviceFixture struct {
	svc      *Service
	provider *stubProvider
	react    *fakeAgent
	code     *fakeAgent
}

func newFixture(t *testing.T, optFns ...func(o *Options)) *serviceFixture {
	t.Helper()
	defaultAgent, provider := newSearchAgent("serper", "jina")
	react := &fakeAgent{name: "react_agent", answer: "react answer"}
	code := &fakeAgent{name: "code_agent", answer: "code answer"}

	svc, err := NewService(defaultAgent, append([]func(o *Options){
		func(o *Options) {
			o.Now = fixedNow
			o.ReactAgent = react
			o.CodeAgent = code
			o.Classifier = intent.Classifier{CodeEnabled: true, QuantitativeEnabled: true, MultiHopEnabled: true}
		},
	}, optFns...)...)
	require.NoError(t, err)

	return &serviceFixture{svc: svc, provider: provider, react: react, code: code}
}

func TestNewService_RequiresDefaultAgent(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestQuery_EmptyQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Query(context.Background(), QueryRequest{})
	require.ErrorIs(t, err, ErrEmptyQuery)
	assert.True(t, IsRequestError(err))
}

func TestQuery_UnknownMode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Query(context.Background(), QueryRequest{Query: "q", Mode: "turbo"})
	require.ErrorIs(t, err, ErrUnknownMode)
	assert.True(t, IsRequestError(err))
}

func TestQuery_DefaultMode(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Query(context.Background(), QueryRequest{
		Query: "tallest mountain",
		Mode:  ModeDefault,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Response)
	assert.Equal(t, "deep_search_serper_jina", result.Metadata.Agent)
	assert.Equal(t, "serper", result.Metadata.SearchProvider)
	assert.Equal(t, "jina", result.Metadata.Reranker)
	assert.Equal(t, fixedDate, result.Metadata.Date)

	// The query handed to the agent carries the date prefix.
	assert.Equal(t, "Today is March 14, 2025. tallest mountain", f.provider.lastQuery)
	assert.Equal(t, 8, f.provider.lastCount)
}

func TestQuery_CodeMode(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Query(context.Background(), QueryRequest{Query: "hello world", Mode: ModeCode})
	require.NoError(t, err)
	assert.Equal(t, "code answer", result.Response)
	assert.Equal(t, "code_agent", result.Metadata.Agent)
	assert.Empty(t, result.Metadata.SearchProvider)
	assert.Contains(t, f.code.lastQuery, "Today is March 14, 2025.")
}

func TestQuery_ProMode(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Query(context.Background(), QueryRequest{Query: "hard question", Mode: ModePro})
	require.NoError(t, err)
	assert.Equal(t, "react answer", result.Response)
	assert.Equal(t, "react_agent", result.Metadata.Agent)
	// An agent that does not expose its tool set reports no tool metadata.
	assert.Empty(t, result.Metadata.SearchProvider)
	assert.Empty(t, result.Metadata.Reranker)
	assert.Empty(t, result.Metadata.AdditionalTool)
}

// Tool metadata for the react agent reflects what the agent actually carries:
// the backend behind its web_search tool and any additional tool.
func TestQuery_ReactMetadataFromTools(t *testing.T) {
	defaultAgent, _ := newSearchAgent("serper", "jina")
	llm := model.NewMockModel("m", "mock")
	wolframTool := tool.NewFunctionTool("wolfram_alpha", "Compute answers",
		map[string]any{"type": "object"},
		func(_ *tool.Context, _ map[string]any) (any, error) { return "42", nil })
	react := agent.NewToolCallingAgent("react_agent", llm,
		[]tool.Tool{tool.NewSearchTool(defaultAgent), wolframTool})

	svc, err := NewService(defaultAgent, func(o *Options) {
		o.Now = fixedNow
		o.ReactAgent = react
	})
	require.NoError(t, err)

	result, err := svc.Query(context.Background(), QueryRequest{Query: "q", UseReact: true})
	require.NoError(t, err)
	assert.Equal(t, "serper", result.Metadata.SearchProvider)
	assert.Equal(t, "jina", result.Metadata.Reranker)
	assert.Equal(t, "wolfram_alpha", result.Metadata.AdditionalTool)

	// A react agent wired without the computation tool reports none.
	searchOnly := agent.NewToolCallingAgent("react_agent", llm,
		[]tool.Tool{tool.NewSearchTool(defaultAgent)})
	svc, err = NewService(defaultAgent, func(o *Options) {
		o.Now = fixedNow
		o.ReactAgent = searchOnly
	})
	require.NoError(t, err)

	result, err = svc.Query(context.Background(), QueryRequest{Query: "q", UseReact: true})
	require.NoError(t, err)
	assert.Equal(t, "serper", result.Metadata.SearchProvider)
	assert.Empty(t, result.Metadata.AdditionalTool)
}

func TestQuery_ProModeWithoutReactFallsBackToDeepSearch(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ReactAgent = nil })

	result, err := f.svc.Query(context.Background(), QueryRequest{Query: "hard question", Mode: ModePro})
	require.NoError(t, err)
	assert.Equal(t, "deep_search_serper_jina", result.Metadata.Agent)
	// Deep search retrieves the expanded result count.
	assert.Equal(t, 20, f.provider.lastCount)
}

func TestQuery_UseReactOverridesMode(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Query(context.Background(), QueryRequest{
		Query:    "hard question",
		Mode:     ModeCode,
		UseReact: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "react_agent", result.Metadata.Agent)
	assert.Empty(t, f.code.lastQuery)
}

func TestQuery_IntentRouting(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantAgent  string
		wantIntent string
	}{
		{"code keyword", "write code to parse a csv file", "code_agent", "code"},
		{"quantitative keyword", "calculate 15% of 230", "react_agent", "quantitative"},
		{"plain lookup", "tallest mountain", "deep_search_serper_jina", "simple_search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			result, err := f.svc.Query(context.Background(), QueryRequest{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAgent, result.Metadata.Agent)
			assert.Equal(t, tt.wantIntent, result.Metadata.Intent)
		})
	}
}

// A service built without a code agent gates the code intent off, so code
// queries fall through to search instead of failing.
func TestQuery_CodeIntentWithoutCodeAgentFallsThrough(t *testing.T) {
	defaultAgent, provider := newSearchAgent("serper", "jina")
	svc, err := NewService(defaultAgent, func(o *Options) {
		o.Now = fixedNow
		o.Classifier = intent.Classifier{}
	})
	require.NoError(t, err)

	result, err := svc.Query(context.Background(), QueryRequest{Query: "write code to sort an array"})
	require.NoError(t, err)
	assert.Equal(t, "deep_search_serper_jina", result.Metadata.Agent)
	assert.Equal(t, "simple_search", result.Metadata.Intent)
	assert.NotEmpty(t, provider.lastQuery)
}

func TestQuery_MultiHopUsesSecondaryAgent(t *testing.T) {
	f := newFixture(t)
	secondary, secondaryProvider := newSearchAgent("searxng", "infinity")
	f.svc.RegisterSearchAgent(secondary)

	result, err := f.svc.Query(context.Background(), QueryRequest{Query: "compare rust against go"})
	require.NoError(t, err)
	assert.Equal(t, "deep_search_searxng_infinity", result.Metadata.Agent)
	assert.Equal(t, "multi_hop", result.Metadata.Intent)
	assert.NotEmpty(t, secondaryProvider.lastQuery)
}

func TestQuery_MultiHopFallsBackToDefault(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Query(context.Background(), QueryRequest{Query: "compare rust against go"})
	require.NoError(t, err)
	assert.Equal(t, "deep_search_serper_jina", result.Metadata.Agent)
	assert.Equal(t, "multi_hop", result.Metadata.Intent)
}

func TestQuery_ProviderHints(t *testing.T) {
	f := newFixture(t)

	// Unregistered combination is a request error.
	_, err := f.svc.Query(context.Background(), QueryRequest{
		Query:          "q",
		Mode:           ModeDefault,
		SearchProvider: "searxng",
		Reranker:       "infinity",
	})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, IsRequestError(err))

	// After registration the same hints route to the new agent.
	secondary, _ := newSearchAgent("searxng", "infinity")
	f.svc.RegisterSearchAgent(secondary)

	result, err := f.svc.Query(context.Background(), QueryRequest{
		Query:          "q",
		Mode:           ModeDefault,
		SearchProvider: "searxng",
		Reranker:       "infinity",
	})
	require.NoError(t, err)
	assert.Equal(t, "searxng", result.Metadata.SearchProvider)
	assert.Equal(t, "infinity", result.Metadata.Reranker)
}

func TestQuery_PartialHintsDefaultMissingSide(t *testing.T) {
	f := newFixture(t)

	// Only the reranker is hinted; the provider defaults to serper.
	result, err := f.svc.Query(context.Background(), QueryRequest{
		Query:    "q",
		Mode:     ModeDefault,
		Reranker: "jina",
	})
	require.NoError(t, err)
	assert.Equal(t, "serper", result.Metadata.SearchProvider)
}

func TestQuery_AgentErrorIsInternal(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("search backend down")

	_, err := f.svc.Query(context.Background(), QueryRequest{Query: "q", Mode: ModeDefault})
	require.Error(t, err)
	assert.False(t, IsRequestError(err))
	assert.Contains(t, err.Error(), "search backend down")
}

func TestConfigureAgent(t *testing.T) {
	calls := 0
	f := newFixture(t, func(o *Options) {
		o.Factory = func(cfg AgentConfig) (*agent.DeepSearchAgent, error) {
			calls++
			a, _ := newSearchAgent(cfg.SearchProvider, cfg.Reranker)
			return a, nil
		}
	})

	key, err := f.svc.ConfigureAgent(AgentConfig{SearchProvider: "searxng", Reranker: "infinity"})
	require.NoError(t, err)
	assert.Equal(t, "searxng_infinity", key)
	assert.Equal(t, 1, calls)

	// Re-registering the same combination is a no-op.
	key, err = f.svc.ConfigureAgent(AgentConfig{SearchProvider: "searxng", Reranker: "infinity"})
	require.NoError(t, err)
	assert.Equal(t, "searxng_infinity", key)
	assert.Equal(t, 1, calls)
}

func TestConfigureAgent_FactoryError(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Factory = func(cfg AgentConfig) (*agent.DeepSearchAgent, error) {
			return nil, ErrUnknownProvider
		}
	})

	_, err := f.svc.ConfigureAgent(AgentConfig{SearchProvider: "brave", Reranker: "jina"})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestConfigureAgent_NoFactory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfigureAgent(AgentConfig{SearchProvider: "searxng", Reranker: "infinity"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestActiveAgents(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"code_agent", "deep_search_serper_jina", "react_agent"}, f.svc.ActiveAgents())

	secondary, _ := newSearchAgent("searxng", "infinity")
	f.svc.RegisterSearchAgent(secondary)
	assert.Equal(t,
		[]string{"code_agent", "deep_search_searxng_infinity", "deep_search_serper_jina", "react_agent"},
		f.svc.ActiveAgents())
}

func TestDate(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, fixedDate, f.svc.Date())
}

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openagents/deepsearch/logging"
	"github.com/openagents/deepsearch/model"
	"github.com/openagents/deepsearch/rerank"
	"github.com/openagents/deepsearch/search"
)

const searchInstruction = `You are a research assistant that answers questions using web search results.
You are given a set of numbered sources retrieved for the user's query, ordered by relevance.
Answer the question using only information supported by the sources and cite them inline as [1], [2], etc.
If the sources do not contain the answer, say so instead of guessing.`

// DeepSearchAgentOptions configure a DeepSearchAgent instance.
//
// Use functional options with NewDeepSearchAgent to override defaults.
type DeepSearchAgentOptions struct {
	// ResultCount is the number of search results fetched for a normal run.
	ResultCount int
	// DeepResultCount is the number fetched when deep search is requested.
	DeepResultCount int
	// TopN is the number of reranked sources passed to the model.
	TopN int
	// Logger used for pipeline instrumentation.
	Logger logging.Logger
}

// DeepSearchAgent answers a query by searching the web, reranking the
// retrieved results and asking a model for a synthesis grounded on the top
// sources. It is the default strategy for plain search queries.
type DeepSearchAgent struct {
	name     string
	provider search.Provider
	reranker rerank.Reranker
	llm      model.Model
	opts     DeepSearchAgentOptions
}

// NewDeepSearchAgent creates a deep search agent over the given provider,
// reranker and model.
func NewDeepSearchAgent(
	provider search.Provider,
	reranker rerank.Reranker,
	llm model.Model,
	optFns ...func(o *DeepSearchAgentOptions),
) *DeepSearchAgent {
	opts := DeepSearchAgentOptions{
		ResultCount:     8,
		DeepResultCount: 20,
		TopN:            5,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &DeepSearchAgent{
		name:     fmt.Sprintf("deep_search_%s_%s", provider.Name(), reranker.Name()),
		provider: provider,
		reranker: reranker,
		llm:      llm,
		opts:     opts,
	}
}

// Name implements Agent.
func (a *DeepSearchAgent) Name() string { return a.name }

// Description implements Agent.
func (a *DeepSearchAgent) Description() string {
	return fmt.Sprintf("Searches the web via %s, reranks results with %s and synthesizes a sourced answer.",
		a.provider.Name(), a.reranker.Name())
}

// Provider returns the search provider backing this agent.
func (a *DeepSearchAgent) Provider() string { return a.provider.Name() }

// Reranker returns the reranker backing this agent.
func (a *DeepSearchAgent) Reranker() string { return a.reranker.Name() }

// Run implements Agent with the normal (shallow) search depth.
func (a *DeepSearchAgent) Run(ctx context.Context, query string) (string, error) {
	return a.Search(ctx, query, false)
}

// Search executes the retrieve-rerank-synthesize pipeline. When deep is true
// more results are retrieved and a more thorough synthesis is requested.
func (a *DeepSearchAgent) Search(ctx context.Context, query string, deep bool) (string, error) {
	count := a.opts.ResultCount
	if deep {
		count = a.opts.DeepResultCount
	}

	start := time.Now()
	results, err := a.provider.Search(ctx, query, search.Options{Count: count})
	a.logSearch(query, len(results), time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("search via %s: %w", a.provider.Name(), err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("search via %s: no results for query", a.provider.Name())
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = formatResult(r)
	}

	topN := a.opts.TopN
	if deep {
		topN = a.opts.TopN * 2
	}
	start = time.Now()
	ranked, err := a.reranker.Rerank(ctx, query, docs, topN)
	a.logRerank(len(docs), time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("rerank via %s: %w", a.reranker.Name(), err)
	}
	if len(ranked) == 0 {
		// Reranker returned nothing usable; fall back to retrieval order.
		ranked, _ = rerank.NoOp{}.Rerank(ctx, query, docs, topN)
	}

	prompt := buildSearchPrompt(query, ranked, deep)
	start = time.Now()
	resp, err := a.llm.Complete(ctx, model.Request{
		Instructions: searchInstruction,
		Messages:     []model.Message{{Role: "user", Content: prompt}},
	})
	a.logModel(time.Since(start), resp, err)
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("synthesize answer: model returned empty response")
	}
	return resp.Content, nil
}

func formatResult(r search.Result) string {
	var b strings.Builder
	b.WriteString(r.Title)
	if r.Snippet != "" {
		b.WriteString(" - ")
		b.WriteString(r.Snippet)
	}
	if r.URL != "" {
		b.WriteString(" (")
		b.WriteString(r.URL)
		b.WriteString(")")
	}
	return b.String()
}

func buildSearchPrompt(query string, sources []rerank.Document, deep bool) string {
	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, doc := range sources {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, doc.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	if deep {
		b.WriteString("\n\nGive a thorough, multi-paragraph answer that cross-references the sources.")
	} else {
		b.WriteString("\n\nGive a concise answer.")
	}
	return b.String()
}

func (a *DeepSearchAgent) logSearch(query string, results int, dur time.Duration, err error) {
	if sl, ok := a.opts.Logger.(*logging.ServiceLogger); ok {
		sl.LogSearchCall(a.provider.Name(), query, results, dur, err)
		return
	}
	a.opts.Logger.Debug("agent.search", "provider", a.provider.Name(), "results", results, "duration_ms", dur.Milliseconds())
}

func (a *DeepSearchAgent) logRerank(docs int, dur time.Duration, err error) {
	if sl, ok := a.opts.Logger.(*logging.ServiceLogger); ok {
		sl.LogRerankCall(a.reranker.Name(), docs, dur, err)
		return
	}
	a.opts.Logger.Debug("agent.rerank", "reranker", a.reranker.Name(), "documents", docs, "duration_ms", dur.Milliseconds())
}

func (a *DeepSearchAgent) logModel(dur time.Duration, resp *model.Response, err error) {
	tokens := 0
	if resp != nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if sl, ok := a.opts.Logger.(*logging.ServiceLogger); ok {
		sl.LogModelCall(a.llm.Info().Name, tokens, dur, err)
		return
	}
	a.opts.Logger.Debug("agent.model", "model", a.llm.Info().Name, "tokens", tokens, "duration_ms", dur.Milliseconds())
}

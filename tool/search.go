package tool

import (
	"context"
	"fmt"
)

// Searcher is the minimal contract a deep search pipeline must satisfy to be
// exposed as a callable tool. The agent package's deep search agent
// implements it.
type Searcher interface {
	Run(ctx context.Context, query string) (string, error)
}

// NewSearchTool exposes a deep search pipeline as a tool so that
// tool-calling agents can ground their reasoning on fresh web results.
func NewSearchTool(searcher Searcher) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query or question to answer using web search",
			},
		},
		"required": []string{"query"},
	}

	return NewFunctionTool(
		"web_search",
		"Search the web and return a sourced answer to the query. Use this for questions about current events, facts, or anything requiring up-to-date information.",
		parameters,
		func(toolCtx *Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, NewToolError("web_search", "query must not be empty", "VALIDATION_ERROR")
			}
			answer, err := searcher.Run(toolCtx.Context(), query)
			if err != nil {
				return nil, fmt.Errorf("web search: %w", err)
			}
			return answer, nil
		},
	)
}

// Package agent contains the pre-built reasoning agents the service routes
// queries to: a deep search agent (retrieve, rerank, synthesize), a
// tool-calling agent driving an iterative reasoning loop over registered
// tools, and a code agent specialised for programming queries.
package agent

import "context"

// Agent is a pre-configured object that accepts a natural-language query and
// returns a natural-language answer, internally orchestrating calls to
// search, reranking and language-model backends.
//
// Implementations must respect context cancellation on all blocking paths
// and be safe for concurrent use.
type Agent interface {
	// Name returns the agent identifier used in routing and metadata.
	Name() string

	// Description returns a human-readable summary of the agent's strategy.
	Description() string

	// Run processes a query and returns the final answer.
	Run(ctx context.Context, query string) (string, error)
}

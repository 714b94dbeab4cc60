// Package rerank defines the relevance reranking contract used by the deep
// search pipeline. A Reranker reorders retrieved documents by relevance to
// the query before they are summarized. Backends live in subpackages (jina,
// infinity).
package rerank

import "context"

// Document is a candidate text passed to a reranker, scored on return.
type Document struct {
	Index int     `json:"index"` // position in the input slice
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Reranker reorders documents by relevance to a query.
type Reranker interface {
	// Name returns the reranker identifier (e.g., "jina", "infinity").
	Name() string

	// Rerank scores docs against query and returns at most topN documents
	// ordered by descending relevance. topN <= 0 means all documents.
	Rerank(ctx context.Context, query string, docs []string, topN int) ([]Document, error)
}

// NoOp is a Reranker that preserves the input order. Used when no reranking
// backend is configured and in tests.
type NoOp struct{}

// Name implements Reranker.
func (NoOp) Name() string { return "none" }

// Rerank implements Reranker.
func (NoOp) Rerank(_ context.Context, _ string, docs []string, topN int) ([]Document, error) {
	n := len(docs)
	if topN > 0 && topN < n {
		n = topN
	}
	out := make([]Document, n)
	for i := 0; i < n; i++ {
		out[i] = Document{Index: i, Text: docs[i]}
	}
	return out, nil
}

// Package infinity implements rerank.Reranker backed by a self-hosted
// Infinity server exposing the OpenAI-style /rerank endpoint.
package infinity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openagents/deepsearch/rerank"
)

// DefaultModel is the rerank model used unless overridden.
const DefaultModel = "BAAI/bge-reranker-base"

const rerankerName = "infinity"

// Options configure the Infinity reranker.
type Options struct {
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Reranker is a rerank.Reranker calling an Infinity instance.
type Reranker struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates an Infinity reranker for the given base URL
// (e.g. "http://localhost:7997").
func New(baseURL string, optFns ...func(o *Options)) *Reranker {
	opts := Options{
		Model:   DefaultModel,
		Timeout: 15 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Reranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   opts.Model,
		client:  client,
	}
}

// Name implements rerank.Reranker.
func (r *Reranker) Name() string { return rerankerName }

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements rerank.Reranker.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]rerank.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("infinity: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("infinity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("infinity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("infinity: unexpected status %d: %s", resp.StatusCode, detail)
	}

	var payload rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("infinity: decode response: %w", err)
	}

	out := make([]rerank.Document, 0, len(payload.Results))
	for _, res := range payload.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			continue
		}
		out = append(out, rerank.Document{Index: res.Index, Text: docs[res.Index], Score: res.RelevanceScore})
	}
	return out, nil
}

// Package jina implements rerank.Reranker backed by the Jina AI rerank API.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openagents/deepsearch/rerank"
)

// DefaultBaseURL is the Jina AI API endpoint.
const DefaultBaseURL = "https://api.jina.ai"

// DefaultModel is the rerank model used unless overridden.
const DefaultModel = "jina-reranker-v2-base-multilingual"

const rerankerName = "jina"

// Options configure the Jina reranker.
type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Reranker is a rerank.Reranker calling the Jina /v1/rerank endpoint.
type Reranker struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// New creates a Jina reranker with the given API key.
func New(apiKey string, optFns ...func(o *Options)) *Reranker {
	opts := Options{
		BaseURL: DefaultBaseURL,
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
	return &Reranker{apiKey: apiKey, baseURL: opts.BaseURL, model: opts.Model, client: client}
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
		Document       struct {
			Text string `json:"text"`
		} `json:"document"`
	} `json:"results"`
}

// Rerank implements rerank.Reranker.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]rerank.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("jina: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("jina: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jina: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("jina: unexpected status %d: %s", resp.StatusCode, detail)
	}

	var payload rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("jina: decode response: %w", err)
	}

	out := make([]rerank.Document, 0, len(payload.Results))
	for _, res := range payload.Results {
		text := res.Document.Text
		if text == "" && res.Index >= 0 && res.Index < len(docs) {
			text = docs[res.Index]
		}
		out = append(out, rerank.Document{Index: res.Index, Text: text, Score: res.RelevanceScore})
	}
	return out, nil
}

// Package serper implements search.Provider backed by the Serper.dev Google
// search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openagents/deepsearch/search"
)

// DefaultBaseURL is the Serper.dev API endpoint.
const DefaultBaseURL = "https://google.serper.dev"

const providerName = "serper"

// Options configure the Serper provider.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Provider is a search.Provider calling the Serper.dev /search endpoint.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Serper provider with the given API key.
func New(apiKey string, optFns ...func(o *Options)) *Provider {
	opts := Options{
		BaseURL: DefaultBaseURL,
		Timeout: 15 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Provider{apiKey: apiKey, baseURL: opts.BaseURL, client: client}
}

// Name implements search.Provider.
func (p *Provider) Name() string { return providerName }

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	HL  string `json:"hl,omitempty"`
}

type organicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type searchResponse struct {
	Organic      []organicResult `json:"organic"`
	AnswerBox    *answerBox      `json:"answerBox,omitempty"`
	KnowledgeBox *knowledgeBox   `json:"knowledgeGraph,omitempty"`
}

type answerBox struct {
	Title   string `json:"title"`
	Answer  string `json:"answer"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type knowledgeBox struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

// Search implements search.Provider.
func (p *Provider) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	body, err := json.Marshal(searchRequest{Q: query, Num: opts.Count, HL: opts.Language})
	if err != nil {
		return nil, fmt.Errorf("serper: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serper: unexpected status %d: %s", resp.StatusCode, detail)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("serper: decode response: %w", err)
	}

	results := make([]search.Result, 0, len(payload.Organic)+1)

	// Answer boxes and knowledge panels are the most direct answers Serper
	// returns; surface them ahead of the organic results.
	if ab := payload.AnswerBox; ab != nil {
		snippet := ab.Answer
		if snippet == "" {
			snippet = ab.Snippet
		}
		if snippet != "" {
			results = append(results, search.Result{Title: ab.Title, URL: ab.Link, Snippet: snippet})
		}
	}
	if kb := payload.KnowledgeBox; kb != nil && kb.Description != "" {
		results = append(results, search.Result{Title: kb.Title, URL: kb.Website, Snippet: kb.Description})
	}
	for _, r := range payload.Organic {
		results = append(results, search.Result{
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
			Position: r.Position,
		})
	}

	if opts.Count > 0 && len(results) > opts.Count {
		results = results[:opts.Count]
	}
	return results, nil
}

// Package searxng implements search.Provider backed by a self-hosted SearXNG
// instance using its JSON output format.
package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openagents/deepsearch/search"
)

const providerName = "searxng"

// Options configure the SearXNG provider.
type Options struct {
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Provider is a search.Provider querying a SearXNG instance.
type Provider struct {
	instanceURL string
	apiKey      string
	client      *http.Client
}

// New creates a SearXNG provider for the given instance URL.
func New(instanceURL string, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Timeout: 15 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Provider{
		instanceURL: strings.TrimRight(instanceURL, "/"),
		apiKey:      opts.APIKey,
		client:      client,
	}
}

// Name implements search.Provider.
func (p *Provider) Name() string { return providerName }

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements search.Provider.
func (p *Provider) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.instanceURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("searxng: build request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("searxng: unexpected status %d: %s", resp.StatusCode, detail)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("searxng: decode response: %w", err)
	}

	results := make([]search.Result, 0, len(payload.Results))
	for i, r := range payload.Results {
		if opts.Count > 0 && len(results) >= opts.Count {
			break
		}
		results = append(results, search.Result{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Content,
			Position: i + 1,
		})
	}
	return results, nil
}

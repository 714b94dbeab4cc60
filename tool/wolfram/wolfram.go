// Package wolfram exposes the Wolfram|Alpha LLM API as a tool for
// quantitative and symbolic computation queries.
package wolfram

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openagents/deepsearch/tool"
)

// DefaultBaseURL is the Wolfram|Alpha LLM API endpoint.
const DefaultBaseURL = "https://www.wolframalpha.com/api/v1/llm-api"

// ToolName is the function name exposed to models.
const ToolName = "wolfram_alpha"

// Options configure the Wolfram tool.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Tool calls the Wolfram|Alpha LLM API with a natural language query and
// returns the short plain text answer.
type Tool struct {
	appID   string
	baseURL string
	client  *http.Client
}

// New creates a Wolfram|Alpha tool with the given application id.
func New(appID string, optFns ...func(o *Options)) *Tool {
	opts := Options{
		BaseURL: DefaultBaseURL,
		Timeout: 20 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Tool{appID: appID, baseURL: opts.BaseURL, client: client}
}

// Name implements tool.Tool.
func (t *Tool) Name() string { return ToolName }

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return "Compute answers to mathematical, scientific and factual questions using Wolfram|Alpha. Use this for calculations, unit conversions, distances, dates and quantitative comparisons."
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The question in natural language, e.g. 'distance between Paris and London'",
			},
		},
		"required": []string{"query"},
	}
}

// Call implements tool.Tool.
func (t *Tool) Call(toolCtx *tool.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, tool.NewToolError(ToolName, "query must not be empty", "VALIDATION_ERROR")
	}

	params := url.Values{}
	params.Set("appid", t.appID)
	params.Set("input", query)

	req, err := http.NewRequestWithContext(toolCtx.Context(), http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, tool.NewToolError(ToolName, err.Error(), "EXECUTION_ERROR")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, tool.NewToolError(ToolName, err.Error(), "EXECUTION_ERROR")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, tool.NewToolError(ToolName, err.Error(), "EXECUTION_ERROR")
	}
	answer := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK {
		return nil, tool.NewToolError(
			ToolName,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, answer),
			"EXECUTION_ERROR",
		)
	}
	if answer == "" {
		return nil, tool.NewToolError(ToolName, "empty answer", "EXECUTION_ERROR")
	}
	return answer, nil
}

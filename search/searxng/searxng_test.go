package searxng

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagents/deepsearch/search"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "tokyo weather", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Tokyo Forecast", "url": "https://weather.example/tokyo", "content": "Sunny, 28C"},
				{"title": "JMA", "url": "https://jma.go.jp", "content": "Official forecast"},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL+"/", func(o *Options) { o.APIKey = "secret" })

	results, err := p.Search(context.Background(), "tokyo weather", search.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Tokyo Forecast", results[0].Title)
	assert.Equal(t, "Sunny, 28C", results[0].Snippet)
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, 2, results[1].Position)
}

func TestSearch_CountLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "a", "url": "u1", "content": "c1"},
				{"title": "b", "url": "u2", "content": "c2"},
				{"title": "c", "url": "u3", "content": "c3"},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL)

	results, err := p.Search(context.Background(), "q", search.Options{Count: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := New(srv.URL)

	_, err := p.Search(context.Background(), "q", search.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

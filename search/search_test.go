package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, query string, _ Options) ([]Result, error) {
	return []Result{{Title: f.name + ": " + query}}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Configured())
	assert.Empty(t, r.Names())

	r.Register(&fakeProvider{name: "serper"})
	r.Register(&fakeProvider{name: "searxng"})

	assert.True(t, r.Configured())
	assert.Equal(t, []string{"searxng", "serper"}, r.Names())

	p, err := r.Get("serper")
	require.NoError(t, err)
	assert.Equal(t, "serper", p.Name())

	_, err = r.Get("brave")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first := &fakeProvider{name: "serper"}
	second := &fakeProvider{name: "serper"}

	r.Register(first)
	r.Register(second)

	p, err := r.Get("serper")
	require.NoError(t, err)
	assert.Same(t, second, p)
	assert.Equal(t, []string{"serper"}, r.Names())
}

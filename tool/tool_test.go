package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagents/deepsearch/internal/util"
	"github.com/openagents/deepsearch/logging"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields.
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// JSON decoded integers arrive as float64
	err = util.ValidateParameters(map[string]any{"x": float64(5)}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.Error(t, err)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")
}

// -------------------- FunctionTool Tests --------------------

func newTestContext() *Context {
	return NewContext(context.Background(), logging.NoOpLogger{}, "fc-1")
}

func sumToolParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumToolParams(), func(_ *Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(newTestContext(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumToolParams(), func(_ *Context, args map[string]any) (any, error) {
		t.Fatal("function must not run on validation failure")
		return nil, nil
	})

	_, err := sumTool.Call(newTestContext(), map[string]any{"a": 2.0})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "sum", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	failTool := NewFunctionTool("fail", "Always fails", map[string]any{"type": "object"}, func(_ *Context, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := failTool.Call(newTestContext(), map[string]any{})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_CustomToolErrorForwarded(t *testing.T) {
	customTool := NewFunctionTool("custom", "Returns custom error", map[string]any{"type": "object"}, func(_ *Context, _ map[string]any) (any, error) {
		return nil, NewToolError("custom", "rate limited", "RATE_LIMIT")
	})

	_, err := customTool.Call(newTestContext(), map[string]any{})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "RATE_LIMIT", toolErr.Code)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"The query"`
	}
	tl := NewFunctionToolFromStruct("lookup", "Look things up", args{}, func(_ *Context, a map[string]any) (any, error) {
		return a["query"], nil
	})

	assert.Equal(t, "lookup", tl.Name())
	props := tl.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "query")

	_, err := tl.Call(newTestContext(), map[string]any{})
	require.Error(t, err) // query is required
}

// -------------------- Search Tool Tests --------------------

type stubSearcher struct {
	lastQuery string
	answer    string
	err       error
}

func (s *stubSearcher) Run(_ context.Context, query string) (string, error) {
	s.lastQuery = query
	return s.answer, s.err
}

func TestSearchTool(t *testing.T) {
	searcher := &stubSearcher{answer: "the cheetah"}
	st := NewSearchTool(searcher)

	assert.Equal(t, "web_search", st.Name())

	result, err := st.Call(newTestContext(), map[string]any{"query": "fastest animal"})
	require.NoError(t, err)
	assert.Equal(t, "the cheetah", result)
	assert.Equal(t, "fastest animal", searcher.lastQuery)
}

func TestSearchTool_EmptyQuery(t *testing.T) {
	st := NewSearchTool(&stubSearcher{})

	_, err := st.Call(newTestContext(), map[string]any{"query": ""})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestSearchTool_SearchError(t *testing.T) {
	st := NewSearchTool(&stubSearcher{err: errors.New("provider down")})

	_, err := st.Call(newTestContext(), map[string]any{"query": "anything"})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "provider down")
}

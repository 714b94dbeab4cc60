package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openagents/deepsearch/logging"
	"github.com/openagents/deepsearch/model"
	"github.com/openagents/deepsearch/tool"
)

const reactInstruction = `You are an expert assistant that solves tasks step by step using the tools available to you.
For each step, reason about what information you still need, then either call a tool to obtain it or give the final answer.
Prefer the wolfram_alpha tool for calculations and quantitative questions and the web_search tool for factual lookups.
When you have enough information, answer the user's question directly and completely.`

// ToolCallingAgentOptions configure a ToolCallingAgent instance.
type ToolCallingAgentOptions struct {
	// Instruction is the system prompt driving the reasoning loop.
	Instruction string
	// MaxSteps bounds the number of model calls in a single run.
	MaxSteps int
	// MaxParallelTools bounds concurrent tool executions within one batch.
	// 0 or negative means no explicit limit.
	MaxParallelTools int
	// ToolTimeout applies per tool invocation.
	ToolTimeout time.Duration
	// Logger used for loop instrumentation.
	Logger logging.Logger
}

// ToolCallingAgent drives an iterative reasoning loop: the model emits tool
// calls, the agent executes them (in parallel when a batch arrives), feeds
// the responses back and repeats until the model produces a final answer or
// the step limit is reached.
type ToolCallingAgent struct {
	name        string
	description string
	llm         model.Model
	tools       map[string]tool.Tool
	opts        ToolCallingAgentOptions
}

// NewToolCallingAgent creates a tool-calling agent with the given model and tools.
func NewToolCallingAgent(name string, llm model.Model, tools []tool.Tool, optFns ...func(o *ToolCallingAgentOptions)) *ToolCallingAgent {
	opts := ToolCallingAgentOptions{
		Instruction:      reactInstruction,
		MaxSteps:         10,
		MaxParallelTools: 4,
		ToolTimeout:      30 * time.Second,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}

	return &ToolCallingAgent{
		name:        name,
		description: "Iterative tool-calling agent for multi-step reasoning tasks.",
		llm:         llm,
		tools:       registry,
		opts:        opts,
	}
}

// Name implements Agent.
func (a *ToolCallingAgent) Name() string { return a.name }

// Description implements Agent.
func (a *ToolCallingAgent) Description() string { return a.description }

// SetDescription overrides the agent description reported in metadata.
func (a *ToolCallingAgent) SetDescription(d string) { a.description = d }

// ToolNames returns the names of all registered tools.
func (a *ToolCallingAgent) ToolNames() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// Run implements Agent.
func (a *ToolCallingAgent) Run(ctx context.Context, query string) (string, error) {
	limiter := NewCallLimiter(a.opts.MaxSteps)
	messages := []model.Message{{Role: "user", Content: query}}
	defs := a.toolDefinitions()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := limiter.Increment(); err != nil {
			return "", fmt.Errorf("agent %s: %w", a.name, err)
		}

		start := time.Now()
		resp, err := a.llm.Complete(ctx, model.Request{
			Instructions: a.opts.Instruction,
			Messages:     messages,
			Tools:        defs,
		})
		if err != nil {
			return "", fmt.Errorf("agent %s: model call: %w", a.name, err)
		}
		a.opts.Logger.Debug("agent.step",
			"agent", a.name,
			"step", limiter.Count(),
			"tool_calls", len(resp.ToolCalls),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Content) == "" {
				return "", fmt.Errorf("agent %s: model returned empty final answer", a.name)
			}
			return resp.Content, nil
		}

		messages = append(messages, model.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, a.executeToolCalls(ctx, resp.ToolCalls)...)
	}
}

// toolDefinitions builds the tool declarations exposed to the model.
func (a *ToolCallingAgent) toolDefinitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(a.tools))
	for _, t := range a.tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// executeToolCalls runs a batch of tool calls, in parallel when more than one
// arrives, and returns one tool message per call in the original order.
// Individual failures and panics are converted to error strings fed back to
// the model rather than aborting the run.
func (a *ToolCallingAgent) executeToolCalls(ctx context.Context, calls []model.ToolCall) []model.Message {
	results := make([]model.Message, len(calls))

	if len(calls) == 1 {
		results[0] = a.executeSingle(ctx, calls[0])
		return results
	}

	maxPar := a.opts.MaxParallelTools
	if maxPar <= 0 || maxPar > len(calls) {
		maxPar = len(calls)
	}
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for i := range calls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call model.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = a.executeSingle(ctx, call)
		}(i, calls[i])
	}
	wg.Wait()

	// Calls skipped by cancellation still need a response message so the
	// conversation stays well formed.
	for i, msg := range results {
		if msg.Role == "" {
			results[i] = toolMessage(calls[i].ID, "error: cancelled")
		}
	}
	return results
}

func (a *ToolCallingAgent) executeSingle(ctx context.Context, call model.ToolCall) model.Message {
	toolCtx := ctx
	var cancel context.CancelFunc
	if a.opts.ToolTimeout > 0 {
		toolCtx, cancel = context.WithTimeout(ctx, a.opts.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool panicked: %v", r)
				a.opts.Logger.Error("agent.tool.panic", "agent", a.name, "tool", call.Name, "recover", r)
			}
		}()
		result, err = a.callTool(toolCtx, call)
	}()
	dur := time.Since(start)

	if sl, ok := a.opts.Logger.(*logging.ServiceLogger); ok {
		sl.LogToolCall(call.Name, dur, err)
	} else {
		a.opts.Logger.Debug("agent.tool.executed", "tool", call.Name, "duration_ms", dur.Milliseconds(), "error", err != nil)
	}

	if err != nil {
		return toolMessage(call.ID, fmt.Sprintf("error: %v", err))
	}
	return toolMessage(call.ID, stringify(result))
}

func (a *ToolCallingAgent) callTool(ctx context.Context, call model.ToolCall) (any, error) {
	t, ok := a.tools[call.Name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, fmt.Errorf("decode arguments for %s: %w", call.Name, err)
		}
	}

	return t.Call(tool.NewContext(ctx, a.opts.Logger, call.ID), args)
}

func toolMessage(callID, content string) model.Message {
	return model.Message{Role: "tool", ToolCallID: callID, Content: content}
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		if raw, err := json.Marshal(v); err == nil {
			return string(raw)
		}
		return fmt.Sprintf("%v", v)
	}
}

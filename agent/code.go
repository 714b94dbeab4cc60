package agent

import (
	"github.com/openagents/deepsearch/model"
	"github.com/openagents/deepsearch/tool"
)

const codeInstruction = `You are an expert software engineer.
Answer programming questions with working, idiomatic code plus a short explanation.
Use the web_search tool when the question depends on library APIs, version specifics or anything you are unsure about.
Always include a complete code block in the final answer.`

// NewCodeAgent creates an agent specialised for code generation queries.
// It is a tool-calling agent with a code-writing instruction and the search
// tool available for API and documentation lookups.
func NewCodeAgent(llm model.Model, tools []tool.Tool, optFns ...func(o *ToolCallingAgentOptions)) *ToolCallingAgent {
	agent := NewToolCallingAgent("code_agent", llm, tools, append([]func(o *ToolCallingAgentOptions){
		func(o *ToolCallingAgentOptions) {
			o.Instruction = codeInstruction
		},
	}, optFns...)...)
	agent.SetDescription("Generates code and programming answers, grounding library usage on web search.")
	return agent
}

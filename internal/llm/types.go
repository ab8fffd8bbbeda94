package llm

import "context"

// Chat roles of the OpenAI-compatible completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in the conversation sent to the model. Tool-result
// messages carry the id of the call they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool invocation requested by the model. Arguments stay a raw
// JSON string here; parsing and repair happen at the call site.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition advertises one callable tool to the model.
type ToolDefinition struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function tool definition with a defaulted
// parameters schema.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return ToolDefinition{
		Type: "function",
		Function: FunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// CompletionRequest is one model call. Tools may be empty, which asks for a
// plain completion.
type CompletionRequest struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Completion is the model's answer to one request.
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Client is the model-provider surface the rest of the system depends on.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

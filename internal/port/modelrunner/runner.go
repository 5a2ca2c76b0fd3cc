// Package modelrunner defines the language-model provider port. The
// provider is a black box that yields an ordered token/event stream; the
// chat runtime never sees transport detail.
package modelrunner

import (
	"context"
	"encoding/json"
)

// EventType discriminates stream events.
type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventToolCallDelta  EventType = "tool-call-delta"
	EventToolCall       EventType = "tool-call"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"
)

// ToolCall is a complete tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Event is one unit of the provider's output stream. A tool-call-delta
// event carries the call's ID and Name with the argument JSON accumulated
// so far; the final tool-call event repeats them with complete Args.
type Event struct {
	Type     EventType
	Text     string    // text/reasoning delta payload
	ToolCall *ToolCall // set for EventToolCallDelta and EventToolCall
	Err      error     // set for EventError
}

// ToolSpec describes one callable tool to the model. Parameters is the
// JSON Schema form produced by the schema codec.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Message is one turn of conversation context.
type Message struct {
	Role       string // "user", "assistant", or "tool"
	Content    string
	ToolCalls  []ToolCall // assistant messages that invoked tools
	ToolCallID string     // tool messages: the call being answered
}

// Request is one model invocation.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

// Runner streams model output. The returned channel is closed when the
// stream ends; cancellation of ctx stops the stream promptly.
type Runner interface {
	Stream(ctx context.Context, req *Request) (<-chan Event, error)
}

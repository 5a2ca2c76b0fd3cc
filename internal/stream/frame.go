// Package stream implements the server->client streaming protocol: a
// multiplexed, strictly ordered sequence of frames carried over one HTTP
// response body as server-sent events.
package stream

import "encoding/json"

// Type discriminates the frame union.
type Type string

// Frame type constants. Frames are emitted in the order produced by the
// model/tool layer and must never be reordered by a consumer.
const (
	TypeTextDelta      Type = "text-delta"
	TypeReasoningDelta Type = "reasoning-delta"
	TypeToolCall       Type = "tool-call"
	TypeToolResult     Type = "tool-result"
	TypeData           Type = "data"
	TypeFinish         Type = "finish"
	TypeError          Type = "error"
)

// Metadata kinds emitted by tool executions via Data frames.
const (
	DataKindDocumentID    = "document-id"
	DataKindDocumentTitle = "document-title"
	DataKindDocumentKind  = "document-kind"
	DataKindContentDelta  = "content-delta"
	DataKindSuggestion    = "suggestion"
	DataKindFinish        = "data-finish"
)

// Frame is one discrete unit of the protocol. Exactly the fields relevant
// to its Type are set; every frame belongs to one in-flight turn.
type Frame struct {
	Type Type `json:"type"`

	// Text carries a text or reasoning delta.
	Text string `json:"text,omitempty"`

	// CallID, Name, Args, Partial describe a tool call announcement.
	// Partial frames carry incomplete argument JSON; the final frame for a
	// call id repeats the name with complete Args and Partial unset.
	CallID  string          `json:"call_id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Partial bool            `json:"partial,omitempty"`

	// Result carries a tool's result payload, emitted only after the
	// corresponding execute resolves.
	Result json.RawMessage `json:"result,omitempty"`

	// Kind and Payload carry out-of-band metadata emitted by a tool's own
	// execute, strictly before that call's tool-result frame.
	Kind    string          `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Message carries the opaque detail of an error frame.
	Message string `json:"message,omitempty"`
}

// Package tools turns persisted tool records into safely invokable
// functions. Internal tools are a closed, compile-time set; external-flow
// tools are synthesized around a stored workflow identifier. The registry
// resolves records to definitions, reconstructs parameter validators from
// their stored schemas, and wraps execution so a failing tool yields a
// structured failure payload instead of aborting the turn.
package tools

import (
	"context"
	"encoding/json"

	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/port/database"
	"github.com/atelierhq/atelier/internal/port/flowrunner"
	"github.com/atelierhq/atelier/internal/schema"
)

// Emitter is the frame sink a tool execution writes metadata to. The
// stream encoder implements it; emissions land on the wire strictly
// before the call's tool-result frame.
type Emitter interface {
	Data(kind string, payload any) error
}

// Context is the capability scope of one chat turn. It is created fresh
// per turn, owned exclusively by that turn's dispatch, and never persisted.
// Tools receive no ambient access beyond it.
type Context struct {
	UserID  string
	ChatID  string
	Agent   *agent.Agent
	Emitter Emitter
}

// Result is the uniform payload a tool returns to the model.
type Result struct {
	Result  any    `json:"result"`
	Content string `json:"content,omitempty"`
}

// Definition is one invokable tool behavior. Immutable, constructed once
// at registry build, independent of persistence.
type Definition struct {
	Name        string
	VerboseName string
	Description string
	Visibility  tool.Visibility

	// DynamicDescription, when set, is appended to the stored description
	// sent to the model. Used to inject per-request facts such as the
	// caller's valid memory-slot names.
	DynamicDescription func(ctx context.Context, tc *Context) string

	// Parameters is the serialized schema of the tool's arguments; nil
	// means the tool takes none. Refinements resolve the schema's named
	// predicate references at deserialize time.
	Parameters  json.RawMessage
	Refinements map[string]schema.Refinement

	// Execute runs the tool. It must contain its own failures: transient
	// errors come back as a Result payload, not an error. A returned
	// error marks the arguments or environment as unusable and is
	// reported to the model as a failure payload by the dispatch layer.
	Execute func(ctx context.Context, tc *Context, args json.RawMessage) (any, error)
}

// Composer streams artifact content for the document tools. Implemented by
// the service layer; injected so tool executions reach storage only
// through it.
type Composer interface {
	Create(ctx context.Context, tc *Context, id, title string, kind document.Kind) (*document.Document, error)
	Update(ctx context.Context, tc *Context, id, description string) (*document.Document, error)
}

// Suggester derives edit suggestions for a document, emitting each one on
// the turn's stream as it arrives. Returns the number produced.
type Suggester interface {
	Generate(ctx context.Context, tc *Context, documentID string) (int, error)
}

// Deps carries the collaborators internal tool executions may touch.
type Deps struct {
	Store     database.Store
	Documents Composer
	Suggester Suggester
	Flows     flowrunner.Runner
}

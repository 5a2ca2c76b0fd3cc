package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/schema"
)

// mustSerialize renders a statically constructed schema tree. Definitions
// are built once at startup, so a marshal failure is a programming error.
func mustSerialize(root *schema.Node) json.RawMessage {
	data, err := schema.Serialize(root)
	if err != nil {
		panic(err)
	}
	return data
}

// Registry holds the closed set of internal tool definitions and resolves
// persisted records against it.
type Registry struct {
	deps     Deps
	internal map[string]*Definition
}

// NewRegistry builds the registry with every internal definition.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, internal: map[string]*Definition{}}
	for _, def := range []*Definition{
		getWeather(),
		createDocument(deps),
		updateDocument(deps),
		requestSuggestions(deps),
		saveMemories(deps),
	} {
		r.internal[def.Name] = def
	}
	return r
}

// Internal returns the definition for an internal tool name, if any.
func (r *Registry) Internal(name string) (*Definition, bool) {
	def, ok := r.internal[name]
	return def, ok
}

// InternalDefinitions returns every internal definition, sorted by name.
func (r *Registry) InternalDefinitions() []*Definition {
	names := make([]string, 0, len(r.internal))
	for name := range r.internal {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Definition, 0, len(names))
	for _, name := range names {
		out = append(out, r.internal[name])
	}
	return out
}

// Resolve maps a persisted record to its definition. Internal records must
// name a registered definition; external records get a definition
// synthesized around their stored flow identifier.
func (r *Registry) Resolve(rec *tool.Record) (*Definition, error) {
	switch rec.Source {
	case tool.SourceInternal:
		def, ok := r.internal[rec.Name]
		if !ok {
			return nil, fmt.Errorf("resolve tool %q: no internal definition", rec.Name)
		}
		return def, nil
	case tool.SourceExternal:
		flowID, err := rec.FlowID()
		if err != nil {
			return nil, fmt.Errorf("resolve tool %q: %w", rec.Name, err)
		}
		return externalFlow(r.deps, rec, flowID), nil
	default:
		return nil, fmt.Errorf("resolve tool %q: unknown source %q", rec.Name, rec.Source)
	}
}

// CoreTool is a fully bound, ready-to-invoke tool: validator reconstructed
// from the stored schema, description finalized for this turn's context.
type CoreTool struct {
	Name        string
	Description string
	Parameters  json.RawMessage

	def    *Definition
	schema *schema.Schema
	tc     *Context
}

// Call validates args against the reconstructed schema and runs the tool.
// Validation failures never reach Execute.
func (t *CoreTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	if t.schema != nil {
		if err := t.schema.Validate(args); err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
	}
	return t.def.Execute(ctx, t.tc, args)
}

// CoreTools binds a set of records to the given turn context. Each record
// is resolved, its stored parameter schema deserialized with the
// definition's refinements, and its dynamic description evaluated. A record
// that fails to resolve, or whose stored schema no longer compiles, is
// logged and dropped from the set; the turn proceeds with the rest.
func (r *Registry) CoreTools(ctx context.Context, records []*tool.Record, tc *Context) map[string]*CoreTool {
	out := make(map[string]*CoreTool, len(records))
	for _, rec := range records {
		def, err := r.Resolve(rec)
		if err != nil {
			slog.Warn("dropping unresolvable tool record", "tool", rec.Name, "tool_id", rec.ID, "error", err)
			continue
		}

		raw := rec.ParametersSchema
		if len(raw) == 0 {
			raw = def.Parameters
		}
		var sch *schema.Schema
		if len(raw) > 0 {
			sch, err = schema.Deserialize(raw, def.Refinements)
			if err != nil {
				slog.Warn("dropping tool with unusable stored schema", "tool", rec.Name, "tool_id", rec.ID, "error", err)
				continue
			}
		}

		desc := rec.Description
		if desc == "" {
			desc = def.Description
		}
		if def.DynamicDescription != nil {
			if extra := def.DynamicDescription(ctx, tc); extra != "" {
				desc = desc + "\n" + extra
			}
		}

		out[rec.Name] = &CoreTool{
			Name:        rec.Name,
			Description: desc,
			Parameters:  raw,
			def:         def,
			schema:      sch,
			tc:          tc,
		}
	}
	return out
}

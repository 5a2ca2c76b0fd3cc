package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/invopop/jsonschema"
	sjs "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atelierhq/atelier/internal/domain"
)

// Schema is a reconstructed validator: the compiled structural schema plus
// the refinement checks that survived the round trip.
type Schema struct {
	raw      json.RawMessage
	compiled *sjs.Schema
	checks   []refCheck
}

// refCheck binds a resolved refinement to the property path it guards.
type refCheck struct {
	path []string
	name string
	fn   Refinement
}

// Deserialize reconstructs a validator from a stored schema document.
// Refinement references are resolved against the supplied map; a reference
// with no entry is a logged anomaly and the node keeps only its structural
// validation. Deserialize never fails because of a missing refinement.
func Deserialize(data json.RawMessage, refinements map[string]Refinement) (*Schema, error) {
	compiled, err := compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode schema tree: %w", err)
	}

	var checks []refCheck
	walk(&root, nil, func(n *Node, path []string) {
		if n.Refinement == "" {
			return
		}
		fn, ok := refinements[n.Refinement]
		if !ok {
			// Fail closed: structural validation only for this node.
			slog.Warn("schema references unknown refinement",
				"refinement", n.Refinement, "path", path)
			return
		}
		checks = append(checks, refCheck{path: append([]string(nil), path...), name: n.Refinement, fn: fn})
	})

	return &Schema{raw: data, compiled: compiled, checks: checks}, nil
}

// Raw returns the stored JSON form the schema was built from.
func (s *Schema) Raw() json.RawMessage { return s.raw }

// Validate checks args against the structural schema, then applies every
// resolved refinement. Failures wrap domain.ErrValidation so the dispatch
// layer can report them back to the model as retryable tool failures.
func (s *Schema) Validate(args json.RawMessage) error {
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("%w: arguments are not valid JSON", domain.ErrValidation)
	}

	if err := s.compiled.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	for _, c := range s.checks {
		val, ok := valueAt(decoded, c.path)
		if !ok {
			continue // presence is the structural schema's job
		}
		if err := c.fn(val); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrValidation, c.name, err)
		}
	}

	return nil
}

// walk visits every node of the tree depth-first with its property path.
func walk(n *Node, path []string, visit func(*Node, []string)) {
	visit(n, path)
	for name, child := range n.Properties {
		walk(child, append(path, name), visit)
	}
	if n.Items != nil {
		walk(n.Items, path, visit)
	}
}

// valueAt descends decoded JSON by object keys. Array items share their
// parent's path; the refinement then receives the whole array.
func valueAt(v any, path []string) (any, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// compiledCache avoids recompiling identical stored schemas across turns.
var compiledCache sync.Map

func compile(data json.RawMessage) (*sjs.Schema, error) {
	key := string(data)
	if cached, ok := compiledCache.Load(key); ok {
		if compiled, ok := cached.(*sjs.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := sjs.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	compiledCache.Store(key, compiled)
	return compiled, nil
}

// FromStruct derives the storable schema form from a Go argument struct.
// Used by internal tool definitions whose parameter shapes are plain structs.
func FromStruct(v any) json.RawMessage {
	r := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	s.Version = "" // storable form is versionless
	data, err := json.Marshal(s)
	if err != nil {
		// Reflection of a static struct type cannot fail at runtime;
		// a marshal error here is a programming mistake.
		panic(fmt.Sprintf("schema: reflect %T: %v", v, err))
	}
	return data
}

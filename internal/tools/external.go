package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/schema"
)

// flowFailure is the payload content returned to the model when a workflow
// invocation cannot produce a result. The turn continues regardless.
const flowFailure = "Flow execution failed"

// externalArgs is the fixed argument shape of every external-flow tool.
type externalArgs struct {
	InputValue string `json:"inputValue" jsonschema:"description=Input to pass to the workflow"`
}

var externalParams = schema.FromStruct(&externalArgs{})

// externalFlow synthesizes a definition around a stored workflow id. Every
// external tool takes the same single-field arguments; failures are
// contained into a uniform payload so a broken workflow never aborts the
// model turn.
func externalFlow(deps Deps, rec *tool.Record, flowID string) *Definition {
	return &Definition{
		Name:        rec.Name,
		VerboseName: rec.VerboseName,
		Description: rec.Description,
		Visibility:  rec.Visibility,
		Parameters:  externalParams,
		Execute: func(ctx context.Context, _ *Context, args json.RawMessage) (any, error) {
			var in externalArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode %s args: %w", rec.Name, err)
			}

			if deps.Flows == nil || !deps.Flows.Configured() {
				slog.Warn("flow runner not configured", "tool", rec.Name, "flow_id", flowID)
				return Result{Result: nil, Content: flowFailure}, nil
			}
			out, err := deps.Flows.Execute(ctx, flowID, in.InputValue)
			if err != nil {
				slog.Error("flow execution failed", "tool", rec.Name, "flow_id", flowID, "error", err)
				return Result{Result: nil, Content: flowFailure}, nil
			}
			return Result{Result: out}, nil
		},
	}
}

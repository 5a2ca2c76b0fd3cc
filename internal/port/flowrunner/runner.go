// Package flowrunner defines the external workflow runner port used by
// external-flow tools.
package flowrunner

import "context"

// Runner executes one named workflow with a single string input and
// returns its text output. Implementations contain transport failures;
// callers translate errors into uniform tool failure payloads.
type Runner interface {
	Execute(ctx context.Context, flowID, input string) (string, error)
	// Configured reports whether credentials are present. When false,
	// callers short-circuit to an empty result without attempting a call.
	Configured() bool
}

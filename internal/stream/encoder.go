package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// State of one turn's encoder.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateFinished
	StateErrored
	StateCancelled
)

// ErrTerminated is returned for writes after a terminal frame.
var ErrTerminated = errors.New("stream already terminated")

// Encoder is the single writer that multiplexes one turn's frames onto an
// HTTP response body. All methods are safe for concurrent use; the mutex
// is what makes the total-ordering contract hold when tool executions and
// the model loop emit interleaved frames.
type Encoder struct {
	mu    sync.Mutex
	w     io.Writer
	flush func()
	state State
}

// NewEncoder wraps a response writer. If w implements http.Flusher each
// frame is flushed immediately so deltas reach the client as they happen.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w, flush: func() {}, state: StateIdle}
	if f, ok := w.(http.Flusher); ok {
		e.flush = f.Flush
	}
	return e
}

// State returns the encoder's current state.
func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// TextDelta emits a model text delta.
func (e *Encoder) TextDelta(text string) error {
	return e.emit(Frame{Type: TypeTextDelta, Text: text})
}

// ReasoningDelta emits a model reasoning delta.
func (e *Encoder) ReasoningDelta(text string) error {
	return e.emit(Frame{Type: TypeReasoningDelta, Text: text})
}

// ToolCallPartial announces a tool call whose arguments are still arriving.
func (e *Encoder) ToolCallPartial(callID, name string, partialArgs json.RawMessage) error {
	return e.emit(Frame{Type: TypeToolCall, CallID: callID, Name: name, Args: partialArgs, Partial: true})
}

// ToolCall announces a tool call with complete arguments.
func (e *Encoder) ToolCall(callID, name string, args json.RawMessage) error {
	return e.emit(Frame{Type: TypeToolCall, CallID: callID, Name: name, Args: args})
}

// ToolResult emits the result of a completed tool execution.
func (e *Encoder) ToolResult(callID, name string, result json.RawMessage) error {
	return e.emit(Frame{Type: TypeToolResult, CallID: callID, Name: name, Result: result})
}

// Data emits an out-of-band metadata frame on behalf of a tool execution.
func (e *Encoder) Data(kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal data payload: %w", err)
	}
	return e.emit(Frame{Type: TypeData, Kind: kind, Payload: raw})
}

// Finish emits the terminal finish frame. The turn is complete; all
// subsequent writes return ErrTerminated.
func (e *Encoder) Finish() error {
	return e.terminate(Frame{Type: TypeFinish}, StateFinished)
}

// Error emits a single opaque error frame and terminates the turn.
// Internal error detail is never forwarded; callers log it server-side.
func (e *Encoder) Error() error {
	return e.terminate(Frame{Type: TypeError, Message: "an error occurred while processing your request"}, StateErrored)
}

// Cancelled terminates the turn after the caller's abort signal fired.
func (e *Encoder) Cancelled() error {
	return e.terminate(Frame{Type: TypeError, Message: "request cancelled"}, StateCancelled)
}

func (e *Encoder) emit(f Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateIdle:
		e.state = StateStreaming
	case StateStreaming:
	default:
		return ErrTerminated
	}

	return e.write(f)
}

func (e *Encoder) terminate(f Frame, terminal State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateFinished, StateErrored, StateCancelled:
		return ErrTerminated
	}

	err := e.write(f)
	e.state = terminal
	return err
}

// write encodes one frame as an SSE data line. Caller holds the mutex.
func (e *Encoder) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	e.flush()
	return nil
}

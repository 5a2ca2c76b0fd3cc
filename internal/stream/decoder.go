package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Segment is one reconstructed unit of a transcript: a run of text, a run
// of reasoning, or one tool interaction.
type Segment struct {
	Kind   string          // "text", "reasoning", or "tool"
	Text   string          // for text/reasoning segments
	CallID string          // for tool segments
	Name   string          // for tool segments
	Args   json.RawMessage // final arguments, set once the final call frame arrives
	Result json.RawMessage // set once the tool-result frame arrives
}

// Transcript is the client-side reduction of a frame sequence. Folding is
// pure: applying the same ordered frames always yields the same transcript,
// and no frame requires looking ahead.
type Transcript struct {
	Segments []Segment
	Data     []Frame // metadata frames in arrival order
	Finished bool
	Err      string

	open map[string]int // call id -> segment index
}

// NewTranscript returns an empty transcript ready to fold frames.
func NewTranscript() *Transcript {
	return &Transcript{open: make(map[string]int)}
}

// Apply folds one frame into the transcript. Frames must be applied in
// arrival order.
func (t *Transcript) Apply(f Frame) {
	switch f.Type {
	case TypeTextDelta:
		t.appendDelta("text", f.Text)
	case TypeReasoningDelta:
		t.appendDelta("reasoning", f.Text)
	case TypeToolCall:
		idx, ok := t.open[f.CallID]
		if !ok {
			t.Segments = append(t.Segments, Segment{Kind: "tool", CallID: f.CallID, Name: f.Name})
			idx = len(t.Segments) - 1
			t.open[f.CallID] = idx
		}
		if !f.Partial {
			t.Segments[idx].Args = f.Args
		}
	case TypeToolResult:
		if idx, ok := t.open[f.CallID]; ok {
			t.Segments[idx].Result = f.Result
		}
	case TypeData:
		t.Data = append(t.Data, f)
	case TypeFinish:
		t.Finished = true
	case TypeError:
		t.Err = f.Message
	}
}

// appendDelta merges a delta into a trailing segment of the same kind, or
// opens a new one. A tool segment in between always splits the run.
func (t *Transcript) appendDelta(kind, text string) {
	if n := len(t.Segments); n > 0 && t.Segments[n-1].Kind == kind {
		t.Segments[n-1].Text += text
		return
	}
	t.Segments = append(t.Segments, Segment{Kind: kind, Text: text})
}

// Text returns the concatenated assistant text of the transcript.
func (t *Transcript) Text() string {
	var b strings.Builder
	for _, s := range t.Segments {
		if s.Kind == "text" {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Decode reads an SSE-encoded frame stream and folds it into a transcript.
func Decode(r io.Reader) (*Transcript, error) {
	t := NewTranscript()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		var f Frame
		if err := json.Unmarshal(bytes.TrimPrefix(line, []byte("data: ")), &f); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		t.Apply(f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return t, nil
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/block"
	"github.com/atelierhq/atelier/internal/domain/tool"
)

type fakeFlows struct {
	out        string
	err        error
	configured bool
	calls      int
}

func (f *fakeFlows) Execute(_ context.Context, flowID, input string) (string, error) {
	f.calls++
	return f.out, f.err
}

func (f *fakeFlows) Configured() bool { return f.configured }

type nopEmitter struct{}

func (nopEmitter) Data(string, any) error { return nil }

func externalRecord(name, flowID string) *tool.Record {
	data, _ := json.Marshal(tool.ExternalData{FlowID: flowID})
	return &tool.Record{
		ID:     "t1",
		Name:   name,
		Source: tool.SourceExternal,
		Data:   data,
	}
}

func TestResolveUnknownInternal(t *testing.T) {
	r := NewRegistry(Deps{})
	_, err := r.Resolve(&tool.Record{Name: "doesNotExist", Source: tool.SourceInternal})
	if err == nil {
		t.Fatal("expected error for unknown internal tool")
	}
	if !strings.Contains(err.Error(), "doesNotExist") {
		t.Errorf("error should name the tool, got %q", err)
	}
}

func TestResolveInternal(t *testing.T) {
	r := NewRegistry(Deps{})
	for _, name := range []string{"getWeather", "createDocument", "updateDocument", "requestSuggestions", "saveMemories"} {
		def, err := r.Resolve(&tool.Record{Name: name, Source: tool.SourceInternal})
		if err != nil {
			t.Fatalf("Resolve(%s): %v", name, err)
		}
		if def.Name != name {
			t.Errorf("Resolve(%s) returned definition %q", name, def.Name)
		}
	}
}

func TestResolveExternalMalformedData(t *testing.T) {
	r := NewRegistry(Deps{})
	_, err := r.Resolve(&tool.Record{Name: "broken", Source: tool.SourceExternal, Data: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected error for external record without flow_id")
	}
}

func TestExternalFlowFailureContained(t *testing.T) {
	tests := []struct {
		name  string
		flows *fakeFlows
	}{
		{"runner error", &fakeFlows{configured: true, err: errors.New("boom")}},
		{"not configured", &fakeFlows{configured: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(Deps{Flows: tt.flows})
			def, err := r.Resolve(externalRecord("summarize", "flow-9"))
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			out, err := def.Execute(context.Background(), &Context{Emitter: nopEmitter{}}, json.RawMessage(`{"inputValue":"hello"}`))
			if err != nil {
				t.Fatalf("Execute returned error, want contained failure: %v", err)
			}
			res, ok := out.(Result)
			if !ok {
				t.Fatalf("Execute returned %T, want Result", out)
			}
			if res.Result != nil {
				t.Errorf("Result.Result = %v, want nil", res.Result)
			}
			if res.Content != "Flow execution failed" {
				t.Errorf("Result.Content = %q, want %q", res.Content, "Flow execution failed")
			}
		})
	}
}

func TestExternalFlowSuccess(t *testing.T) {
	flows := &fakeFlows{configured: true, out: "42"}
	r := NewRegistry(Deps{Flows: flows})
	def, err := r.Resolve(externalRecord("summarize", "flow-9"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := def.Execute(context.Background(), &Context{}, json.RawMessage(`{"inputValue":"hello"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := out.(Result)
	if res.Result != "42" {
		t.Errorf("Result.Result = %v, want %q", res.Result, "42")
	}
	if flows.calls != 1 {
		t.Errorf("runner called %d times, want 1", flows.calls)
	}
}

func TestCoreToolsDropsDriftedRecords(t *testing.T) {
	r := NewRegistry(Deps{Flows: &fakeFlows{configured: true}})
	tc := &Context{UserID: "u1", Emitter: nopEmitter{}}

	bound := r.CoreTools(context.Background(), []*tool.Record{
		{Name: "ghostTool", Source: tool.SourceInternal},
		{Name: "broken", Source: tool.SourceExternal, Data: json.RawMessage(`{}`)},
		{Name: "getWeather", Source: tool.SourceInternal, ParametersSchema: json.RawMessage(`{"type":`)},
		externalRecord("summarize", "flow-9"),
	}, tc)

	if len(bound) != 1 {
		t.Fatalf("bound %d tools, want 1: %v", len(bound), bound)
	}
	if bound["summarize"] == nil {
		t.Error("healthy record should bind despite drifted siblings")
	}
}

func TestCoreToolsValidateBeforeExecute(t *testing.T) {
	flows := &fakeFlows{configured: true, out: "ok"}
	r := NewRegistry(Deps{Flows: flows})
	tc := &Context{UserID: "u1", Emitter: nopEmitter{}}

	bound := r.CoreTools(context.Background(), []*tool.Record{externalRecord("summarize", "flow-9")}, tc)
	ct := bound["summarize"]
	if ct == nil {
		t.Fatal("summarize not bound")
	}

	if _, err := ct.Call(context.Background(), json.RawMessage(`{"inputValue":42}`)); err == nil {
		t.Error("expected validation error for non-string inputValue")
	}
	if flows.calls != 0 {
		t.Errorf("runner called %d times before valid args, want 0", flows.calls)
	}

	if _, err := ct.Call(context.Background(), json.RawMessage(`{"inputValue":"hi"}`)); err != nil {
		t.Errorf("Call with valid args: %v", err)
	}
	if flows.calls != 1 {
		t.Errorf("runner called %d times, want 1", flows.calls)
	}
}

func TestCoreToolsWeatherRefinement(t *testing.T) {
	r := NewRegistry(Deps{})
	tc := &Context{UserID: "u1", Emitter: nopEmitter{}}
	bound := r.CoreTools(context.Background(), []*tool.Record{
		{Name: "getWeather", Source: tool.SourceInternal},
	}, tc)
	ct := bound["getWeather"]
	if ct == nil {
		t.Fatal("getWeather not bound")
	}

	if _, err := ct.Call(context.Background(), json.RawMessage(`{"latitude":200,"longitude":0}`)); err == nil {
		t.Error("expected refinement error for latitude 200")
	}
	if _, err := ct.Call(context.Background(), json.RawMessage(`{"longitude":0}`)); err == nil {
		t.Error("expected structural error for missing latitude")
	}
}

func TestCoreToolsDynamicDescription(t *testing.T) {
	r := NewRegistry(Deps{})
	tc := &Context{
		UserID: "u1",
		Agent: &agent.Agent{
			ID: "a1",
			BlockRefs: []block.Ref{
				{Name: "user_name", Visibility: block.VisibilityPrivate},
				{Name: "mood", Visibility: block.VisibilityPrivate},
			},
		},
		Emitter: nopEmitter{},
	}
	bound := r.CoreTools(context.Background(), []*tool.Record{
		{Name: "saveMemories", Source: tool.SourceInternal, Description: "Persist facts."},
	}, tc)
	desc := bound["saveMemories"].Description
	if !strings.HasPrefix(desc, "Persist facts.") {
		t.Errorf("stored description should lead, got %q", desc)
	}
	if !strings.Contains(desc, "user_name") || !strings.Contains(desc, "mood") {
		t.Errorf("dynamic description should list slot names, got %q", desc)
	}
}

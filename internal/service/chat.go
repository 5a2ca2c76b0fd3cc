package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/chat"
	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/port/broadcast"
	"github.com/atelierhq/atelier/internal/port/database"
	"github.com/atelierhq/atelier/internal/port/messagequeue"
	"github.com/atelierhq/atelier/internal/port/modelrunner"
	"github.com/atelierhq/atelier/internal/stream"
	"github.com/atelierhq/atelier/internal/tools"

	otelad "github.com/atelierhq/atelier/internal/adapter/otel"
	wsadapter "github.com/atelierhq/atelier/internal/adapter/ws"
)

// ChatConfig bundles the tunables of the turn loop.
type ChatConfig struct {
	DefaultModel string
	MaxTokens    int
	MaxSteps     int // model invocations per turn, tool rounds included
}

// ChatService orchestrates chat turns: prompt resolution, the model loop,
// tool dispatch, and persistence of the resulting messages.
type ChatService struct {
	db       database.Store
	model    modelrunner.Runner
	blocks   *BlockService
	agents   *AgentService
	registry *tools.Registry
	hub      broadcast.Broadcaster
	queue    messagequeue.Queue
	metrics  *otelad.Metrics
	cfg      ChatConfig
}

// NewChatService creates a ChatService. hub, queue, and metrics may be nil.
func NewChatService(db database.Store, model modelrunner.Runner, blocks *BlockService, agents *AgentService,
	registry *tools.Registry, hub broadcast.Broadcaster, queue messagequeue.Queue, metrics *otelad.Metrics,
	cfg ChatConfig) *ChatService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}
	return &ChatService{
		db: db, model: model, blocks: blocks, agents: agents, registry: registry,
		hub: hub, queue: queue, metrics: metrics, cfg: cfg,
	}
}

// --- Chat CRUD ---

// Create starts a new chat for the caller.
func (s *ChatService) Create(ctx context.Context, callerID, title, agentID string, visibility chat.Visibility) (*chat.Chat, error) {
	if visibility == "" {
		visibility = chat.VisibilityPrivate
	}
	if agentID != "" {
		if _, err := s.agents.Get(ctx, agentID, callerID); err != nil {
			return nil, err
		}
	}
	return s.db.CreateChat(ctx, &chat.Chat{
		OwnerID:    callerID,
		Title:      title,
		AgentID:    agentID,
		Visibility: visibility,
	})
}

// Get returns a chat the caller may read.
func (s *ChatService) Get(ctx context.Context, id, callerID string) (*chat.Chat, error) {
	c, err := s.db.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Readable(callerID) {
		return nil, fmt.Errorf("get chat %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// List returns the caller's chats.
func (s *ChatService) List(ctx context.Context, callerID string) ([]chat.Chat, error) {
	return s.db.ListChatsByOwner(ctx, callerID)
}

// Delete removes a chat the caller owns.
func (s *ChatService) Delete(ctx context.Context, id, callerID string) error {
	c, err := s.db.GetChat(ctx, id)
	if err != nil {
		return err
	}
	if c.OwnerID != callerID {
		return fmt.Errorf("delete chat %s: %w", id, domain.ErrNotFound)
	}
	return s.db.DeleteChat(ctx, id)
}

// Messages returns a chat's messages for a caller who may read it.
func (s *ChatService) Messages(ctx context.Context, id, callerID string) ([]chat.Message, error) {
	if _, err := s.Get(ctx, id, callerID); err != nil {
		return nil, err
	}
	return s.db.ListMessages(ctx, id)
}

// --- Turn ---

// Turn is a prepared chat turn, ready to stream. Everything that can fail
// with a meaningful HTTP status happens in PrepareTurn, before the
// response body is committed to streaming.
type Turn struct {
	Chat     *chat.Chat
	Agent    *agent.Agent // nil when the chat has no persona
	System   string
	Records  []*tool.Record
	Model    string
	Messages []modelrunner.Message

	callerID string
}

// PrepareTurn validates the request, checks access, resolves the system
// prompt and tool set, and persists the incoming user message.
func (s *ChatService) PrepareTurn(ctx context.Context, callerID string, req *chat.TurnRequest) (*Turn, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	c, err := s.db.GetChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != callerID {
		// Non-owners never post turns; hide private chats entirely.
		if !c.Readable(callerID) {
			return nil, fmt.Errorf("chat %s: %w", req.ChatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("chat %s: %w", req.ChatID, domain.ErrUnauthorized)
	}

	t := &Turn{Chat: c, Model: req.Model, callerID: callerID}

	agentID := req.AgentID
	if agentID == "" {
		agentID = c.AgentID
	}
	if agentID != "" {
		a, err := s.agents.Get(ctx, agentID, callerID)
		if err != nil {
			return nil, err
		}
		t.Agent = a
		t.System, err = s.blocks.ResolvePrompt(ctx, a.SystemPrompt, a.BlockRefs, callerID)
		if err != nil {
			return nil, err
		}
		t.Records, err = s.agents.Tools(ctx, a)
		if err != nil {
			return nil, err
		}
		if t.Model == "" {
			t.Model = a.Model
		}
	}
	if t.Model == "" {
		t.Model = s.cfg.DefaultModel
	}

	t.Messages, err = s.history(ctx, c.ID, req)
	if err != nil {
		return nil, err
	}
	t.Messages = append(t.Messages, modelrunner.Message{Role: "user", Content: req.Message.Content})

	userParts, _ := json.Marshal([]stream.Segment{{Kind: "text", Text: req.Message.Content}})
	if _, err := s.db.CreateMessage(ctx, &chat.Message{
		ChatID: c.ID,
		Role:   "user",
		Parts:  userParts,
	}); err != nil {
		return nil, err
	}

	return t, nil
}

// history builds the model context: the client's replayed messages when
// present, otherwise the persisted chat history.
func (s *ChatService) history(ctx context.Context, chatID string, req *chat.TurnRequest) ([]modelrunner.Message, error) {
	if len(req.History) > 0 {
		out := make([]modelrunner.Message, 0, len(req.History))
		for _, m := range req.History {
			out = append(out, modelrunner.Message{Role: m.Role, Content: m.Content})
		}
		return out, nil
	}

	stored, err := s.db.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	var out []modelrunner.Message
	for _, m := range stored {
		var segs []stream.Segment
		if json.Unmarshal(m.Parts, &segs) != nil {
			continue
		}
		var text string
		for _, seg := range segs {
			if seg.Kind == "text" {
				text += seg.Text
			}
		}
		if text != "" {
			out = append(out, modelrunner.Message{Role: m.Role, Content: text})
		}
	}
	return out, nil
}

// StreamTurn runs the prepared turn against the encoder. All outcomes end
// in exactly one terminal frame; errors after streaming began surface as an
// opaque error frame and are logged server-side.
func (s *ChatService) StreamTurn(ctx context.Context, enc *stream.Encoder, t *Turn) {
	start := time.Now()
	agentID := ""
	if t.Agent != nil {
		agentID = t.Agent.ID
	}
	ctx, span := otelad.StartTurnSpan(ctx, t.Chat.ID, agentID)
	defer span.End()

	if s.metrics != nil {
		s.metrics.TurnsStarted.Add(ctx, 1)
	}
	s.publish(ctx, messagequeue.SubjectTurnStarted, map[string]string{"chat_id": t.Chat.ID})

	rec := &recorder{enc: enc, tr: stream.NewTranscript()}

	tc := &tools.Context{
		UserID:  t.callerID,
		ChatID:  t.Chat.ID,
		Agent:   t.Agent,
		Emitter: enc,
	}
	bound := s.registry.CoreTools(ctx, t.Records, tc)
	specs := make([]modelrunner.ToolSpec, 0, len(bound))
	for _, ct := range bound {
		specs = append(specs, modelrunner.ToolSpec{
			Name:        ct.Name,
			Description: ct.Description,
			Parameters:  ct.Parameters,
		})
	}

	messages := t.Messages
	for step := 0; step < s.cfg.MaxSteps; step++ {
		calls, stepText, err := s.modelStep(ctx, rec, &modelrunner.Request{
			Model:     t.Model,
			System:    t.System,
			Messages:  messages,
			Tools:     specs,
			MaxTokens: s.cfg.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				_ = enc.Cancelled()
				return
			}
			s.fail(ctx, enc, "model stream", err)
			return
		}
		if len(calls) == 0 {
			break
		}

		results := s.dispatch(ctx, bound, calls)
		if ctx.Err() != nil {
			_ = enc.Cancelled()
			return
		}
		for i, call := range calls {
			rec.toolResult(call.ID, call.Name, results[i])
			if s.metrics != nil {
				s.metrics.ToolCalls.Add(ctx, 1)
			}
		}

		assistant := modelrunner.Message{Role: "assistant", Content: stepText}
		for _, call := range calls {
			assistant.ToolCalls = append(assistant.ToolCalls, *call)
		}
		messages = append(messages, assistant)
		for i, call := range calls {
			messages = append(messages, modelrunner.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    string(results[i]),
			})
		}
	}

	if ctx.Err() != nil {
		_ = enc.Cancelled()
		return
	}
	_ = enc.Finish()

	parts, err := json.Marshal(rec.tr.Segments)
	if err == nil {
		_, err = s.db.CreateMessage(ctx, &chat.Message{
			ChatID: t.Chat.ID,
			Role:   "assistant",
			Parts:  parts,
		})
	}
	if err != nil {
		slog.Error("persist assistant message", "chat_id", t.Chat.ID, "error", err)
	}

	s.publish(ctx, messagequeue.SubjectTurnFinished, map[string]string{"chat_id": t.Chat.ID})
	s.hub.BroadcastEvent(ctx, wsadapter.EventChatTurnFinished, wsadapter.ChatTurnEvent{ChatID: t.Chat.ID})
	if s.metrics != nil {
		s.metrics.TurnsFinished.Add(ctx, 1)
		s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// modelStep drains one model invocation, forwarding deltas to the stream
// and collecting the step's tool calls in arrival order.
func (s *ChatService) modelStep(ctx context.Context, rec *recorder, req *modelrunner.Request) ([]*modelrunner.ToolCall, string, error) {
	events, err := s.model.Stream(ctx, req)
	if err != nil {
		return nil, "", err
	}

	var calls []*modelrunner.ToolCall
	var text string
	for ev := range events {
		switch ev.Type {
		case modelrunner.EventTextDelta:
			text += ev.Text
			if err := rec.textDelta(ev.Text); err != nil {
				return nil, "", err
			}
		case modelrunner.EventReasoningDelta:
			if err := rec.reasoningDelta(ev.Text); err != nil {
				return nil, "", err
			}
		case modelrunner.EventToolCallDelta:
			if err := rec.toolCallPartial(ev.ToolCall); err != nil {
				return nil, "", err
			}
		case modelrunner.EventToolCall:
			calls = append(calls, ev.ToolCall)
			if err := rec.toolCall(ev.ToolCall); err != nil {
				return nil, "", err
			}
		case modelrunner.EventError:
			return nil, "", ev.Err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return calls, text, nil
}

// dispatch executes the step's tool calls concurrently. Results come back
// indexed by call order; the caller emits them in that order.
func (s *ChatService) dispatch(ctx context.Context, bound map[string]*tools.CoreTool, calls []*modelrunner.ToolCall) []json.RawMessage {
	results := make([]json.RawMessage, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = s.invoke(gctx, bound, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// invoke runs one tool call, containing every failure into a result
// payload so a broken tool never aborts the turn.
func (s *ChatService) invoke(ctx context.Context, bound map[string]*tools.CoreTool, call *modelrunner.ToolCall) json.RawMessage {
	ctx, span := otelad.StartToolCallSpan(ctx, call.ID, call.Name)
	defer span.End()

	ct, ok := bound[call.Name]
	if !ok {
		slog.Warn("model requested unbound tool", "tool", call.Name)
		return failurePayload("Unknown tool")
	}

	out, err := ct.Call(ctx, call.Args)
	if err != nil {
		slog.Error("tool execution failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return failurePayload("Tool execution failed")
	}
	data, err := json.Marshal(out)
	if err != nil {
		slog.Error("marshal tool result", "tool", call.Name, "error", err)
		return failurePayload("Tool execution failed")
	}
	return data
}

func failurePayload(content string) json.RawMessage {
	data, _ := json.Marshal(tools.Result{Result: nil, Content: content})
	return data
}

func (s *ChatService) fail(ctx context.Context, enc *stream.Encoder, stage string, err error) {
	slog.Error("chat turn failed", "stage", stage, "error", err)
	if s.metrics != nil {
		s.metrics.TurnsFailed.Add(ctx, 1)
	}
	_ = enc.Error()
}

func (s *ChatService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish turn event", "subject", subject, "error", err)
	}
}

// recorder mirrors every emitted frame into a transcript so the assistant
// message persists exactly what streamed.
type recorder struct {
	enc *stream.Encoder
	tr  *stream.Transcript
}

func (r *recorder) textDelta(text string) error {
	r.tr.Apply(stream.Frame{Type: stream.TypeTextDelta, Text: text})
	return r.enc.TextDelta(text)
}

func (r *recorder) reasoningDelta(text string) error {
	r.tr.Apply(stream.Frame{Type: stream.TypeReasoningDelta, Text: text})
	return r.enc.ReasoningDelta(text)
}

func (r *recorder) toolCallPartial(call *modelrunner.ToolCall) error {
	r.tr.Apply(stream.Frame{Type: stream.TypeToolCall, CallID: call.ID, Name: call.Name, Args: call.Args, Partial: true})
	return r.enc.ToolCallPartial(call.ID, call.Name, call.Args)
}

func (r *recorder) toolCall(call *modelrunner.ToolCall) error {
	r.tr.Apply(stream.Frame{Type: stream.TypeToolCall, CallID: call.ID, Name: call.Name, Args: call.Args})
	return r.enc.ToolCall(call.ID, call.Name, call.Args)
}

func (r *recorder) toolResult(callID, name string, result json.RawMessage) {
	r.tr.Apply(stream.Frame{Type: stream.TypeToolResult, CallID: callID, Name: name, Result: result})
	_ = r.enc.ToolResult(callID, name, result)
}

// Package anthropic implements the model runner port against the Anthropic
// Messages API using the official SDK's SSE streaming client.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/port/modelrunner"
)

// Runner implements modelrunner.Runner.
type Runner struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int
	maxRetries   int
	retryDelay   time.Duration
}

// NewRunner creates a Runner from provider configuration.
func NewRunner(cfg config.Anthropic) *Runner {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Runner{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}
}

// Stream opens a streaming completion and pumps provider events into the
// returned channel. The channel closes when the model turn ends.
func (r *Runner) Stream(ctx context.Context, req *modelrunner.Request) (<-chan modelrunner.Event, error) {
	params, err := r.buildParams(req)
	if err != nil {
		return nil, err
	}

	events := make(chan modelrunner.Event)
	go func() {
		defer close(events)
		var lastErr error
		for attempt := 0; attempt <= r.maxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(r.retryDelay * time.Duration(attempt)):
				}
				slog.Info("retrying model stream", "attempt", attempt)
			}

			started, err := r.pump(ctx, params, events)
			if err == nil {
				return
			}
			// Once any event reached the caller, the stream cannot be
			// transparently restarted.
			if started || ctx.Err() != nil {
				events <- modelrunner.Event{Type: modelrunner.EventError, Err: err}
				return
			}
			lastErr = err
		}
		events <- modelrunner.Event{Type: modelrunner.EventError, Err: lastErr}
	}()
	return events, nil
}

func (r *Runner) buildParams(req *modelrunner.Request) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = r.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.maxTokens
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// pump drains one SSE stream into events. The bool result reports whether
// anything was emitted before the failure.
func (r *Runner) pump(ctx context.Context, params anthropic.MessageNewParams, events chan<- modelrunner.Event) (bool, error) {
	stream := r.client.Messages.NewStreaming(ctx, params)

	var started bool
	var toolCall *modelrunner.ToolCall
	var toolInput strings.Builder
	inThinking := false

	emit := func(ev modelrunner.Event) bool {
		select {
		case <-ctx.Done():
			return false
		case events <- ev:
			started = true
			return true
		}
	}

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			contentBlock := event.AsContentBlockStart().ContentBlock
			switch contentBlock.Type {
			case "thinking":
				inThinking = true
			case "tool_use":
				toolUse := contentBlock.AsToolUse()
				toolCall = &modelrunner.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				toolInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					if !emit(modelrunner.Event{Type: modelrunner.EventTextDelta, Text: delta.Text}) {
						return started, ctx.Err()
					}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					if !emit(modelrunner.Event{Type: modelrunner.EventReasoningDelta, Text: delta.Thinking}) {
						return started, ctx.Err()
					}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" && toolCall != nil {
					toolInput.WriteString(delta.PartialJSON)
					partial := &modelrunner.ToolCall{
						ID:   toolCall.ID,
						Name: toolCall.Name,
						Args: json.RawMessage(toolInput.String()),
					}
					if !emit(modelrunner.Event{Type: modelrunner.EventToolCallDelta, ToolCall: partial}) {
						return started, ctx.Err()
					}
				}
			}

		case "content_block_stop":
			if inThinking {
				inThinking = false
				break
			}
			if toolCall != nil {
				args := toolInput.String()
				if args == "" {
					args = "{}"
				}
				toolCall.Args = json.RawMessage(args)
				if !emit(modelrunner.Event{Type: modelrunner.EventToolCall, ToolCall: toolCall}) {
					return started, ctx.Err()
				}
				toolCall = nil
			}

		case "message_stop":
			emit(modelrunner.Event{Type: modelrunner.EventFinish})
			return started, nil

		case "error":
			return started, errors.New("model stream error")
		}
	}

	if err := stream.Err(); err != nil {
		return started, fmt.Errorf("model stream: %w", err)
	}
	// Stream ended without message_stop; treat as finished.
	emit(modelrunner.Event{Type: modelrunner.EventFinish})
	return started, nil
}

func convertMessages(messages []modelrunner.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		if msg.Role == "tool" {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			result = append(result, anthropic.NewUserMessage(content...))
			continue
		}

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if err := json.Unmarshal(tc.Args, &input); err != nil {
				return nil, fmt.Errorf("invalid tool call args for %s: %w", tc.Name, err)
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(tools []modelrunner.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("invalid parameters for tool %s: %w", t.Name, err)
			}
		} else {
			schema.Type = "object"
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool definition for %s", t.Name)
		}
		if t.Description != "" {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		result = append(result, param)
	}
	return result, nil
}

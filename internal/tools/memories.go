package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/block"
	"github.com/atelierhq/atelier/internal/schema"
)

func slotVisibility(tc *Context, name string) block.Visibility {
	for _, ref := range tc.Agent.BlockRefs {
		if ref.Name == name {
			return ref.Visibility
		}
	}
	return block.VisibilityPrivate
}

func saveMemories(deps Deps) *Definition {
	params := schema.Object(map[string]*schema.Node{
		"memories": schema.Array("Memories to save",
			schema.Object(map[string]*schema.Node{
				"name":    schema.String("Name of the memory slot to write"),
				"content": schema.String("New content for the memory slot"),
			}, "name", "content")),
	}, "memories")

	return &Definition{
		Name:        "saveMemories",
		VerboseName: "Save Memories",
		Description: "Persist facts the user shares into the agent's memory slots so they survive across conversations.",
		Parameters:  mustSerialize(params),
		DynamicDescription: func(_ context.Context, tc *Context) string {
			if tc.Agent == nil || len(tc.Agent.BlockRefs) == 0 {
				return ""
			}
			names := make([]string, 0, len(tc.Agent.BlockRefs))
			for _, ref := range tc.Agent.BlockRefs {
				names = append(names, ref.Name)
			}
			return "Valid memory slot names: " + strings.Join(names, ", ")
		},
		Execute: func(ctx context.Context, tc *Context, args json.RawMessage) (any, error) {
			var in struct {
				Memories []struct {
					Name    string `json:"name"`
					Content string `json:"content"`
				} `json:"memories"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode saveMemories args: %w", err)
			}
			if tc.Agent == nil {
				return Result{Result: nil, Content: "No memory slots are configured."}, nil
			}

			refs := make(map[string]struct{}, len(tc.Agent.BlockRefs))
			for _, ref := range tc.Agent.BlockRefs {
				refs[ref.Name] = struct{}{}
			}

			saved := make([]string, 0, len(in.Memories))
			for _, m := range in.Memories {
				if _, ok := refs[m.Name]; !ok {
					slog.Warn("skipping unknown memory slot", "name", m.Name, "agent_id", tc.Agent.ID)
					continue
				}
				if err := deps.Store.UpdateBlockContent(ctx, m.Name, slotVisibility(tc, m.Name), tc.UserID, m.Content); err != nil {
					// A referenced slot may have no block yet; skip it so
					// one absent name cannot discard the rest of the batch.
					if errors.Is(err, domain.ErrNotFound) {
						slog.Warn("skipping memory slot with no block", "name", m.Name, "agent_id", tc.Agent.ID)
						continue
					}
					return nil, fmt.Errorf("save memory %q: %w", m.Name, err)
				}
				saved = append(saved, m.Name)
			}

			return map[string]any{"saved": saved}, nil
		},
	}
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atelierhq/atelier/internal/schema"
)

func requestSuggestions(deps Deps) *Definition {
	params := schema.Object(map[string]*schema.Node{
		"documentId": schema.String("The ID of the document to request edits for"),
	}, "documentId")

	return &Definition{
		Name:        "requestSuggestions",
		VerboseName: "Request Suggestions",
		Description: "Request edit suggestions for an existing document. Each suggestion streams to the user as it is produced.",
		Parameters:  mustSerialize(params),
		Execute: func(ctx context.Context, tc *Context, args json.RawMessage) (any, error) {
			var in struct {
				DocumentID string `json:"documentId"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode requestSuggestions args: %w", err)
			}

			n, err := deps.Suggester.Generate(ctx, tc, in.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("generate suggestions: %w", err)
			}

			return map[string]any{
				"id":      in.DocumentID,
				"message": fmt.Sprintf("Added %d suggestions to the document.", n),
			}, nil
		},
	}
}

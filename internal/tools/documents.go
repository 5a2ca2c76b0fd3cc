package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/schema"
	"github.com/atelierhq/atelier/internal/stream"
)

func createDocument(deps Deps) *Definition {
	params := schema.Object(map[string]*schema.Node{
		"title": schema.String("Title of the document"),
		"kind":  schema.StringEnum("Kind of document to create", "text", "code", "sheet"),
	}, "title", "kind")

	return &Definition{
		Name:        "createDocument",
		VerboseName: "Create Document",
		Description: "Create a document for writing or content creation activities. The document content streams to the user as it is generated.",
		Parameters:  mustSerialize(params),
		Execute: func(ctx context.Context, tc *Context, args json.RawMessage) (any, error) {
			var in struct {
				Title string `json:"title"`
				Kind  string `json:"kind"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode createDocument args: %w", err)
			}

			id := uuid.NewString()
			if err := tc.Emitter.Data(stream.DataKindDocumentKind, in.Kind); err != nil {
				return nil, err
			}
			if err := tc.Emitter.Data(stream.DataKindDocumentID, id); err != nil {
				return nil, err
			}
			if err := tc.Emitter.Data(stream.DataKindDocumentTitle, in.Title); err != nil {
				return nil, err
			}

			doc, err := deps.Documents.Create(ctx, tc, id, in.Title, document.Kind(in.Kind))
			if err != nil {
				return nil, fmt.Errorf("compose document: %w", err)
			}
			_ = tc.Emitter.Data(stream.DataKindFinish, nil)

			return map[string]any{
				"id":      doc.ID,
				"title":   doc.Title,
				"kind":    doc.Kind,
				"content": "A document was created and is now visible to the user.",
			}, nil
		},
	}
}

func updateDocument(deps Deps) *Definition {
	params := schema.Object(map[string]*schema.Node{
		"id":          schema.String("The ID of the document to update"),
		"description": schema.String("The description of changes that need to be made"),
	}, "id", "description")

	return &Definition{
		Name:        "updateDocument",
		VerboseName: "Update Document",
		Description: "Update a document with the given description of changes. The new content streams to the user as it is generated.",
		Parameters:  mustSerialize(params),
		Execute: func(ctx context.Context, tc *Context, args json.RawMessage) (any, error) {
			var in struct {
				ID          string `json:"id"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode updateDocument args: %w", err)
			}

			doc, err := deps.Documents.Update(ctx, tc, in.ID, in.Description)
			if err != nil {
				return nil, fmt.Errorf("compose document update: %w", err)
			}
			_ = tc.Emitter.Data(stream.DataKindFinish, nil)

			return map[string]any{
				"id":      doc.ID,
				"title":   doc.Title,
				"kind":    doc.Kind,
				"content": "The document has been updated successfully.",
			}, nil
		},
	}
}

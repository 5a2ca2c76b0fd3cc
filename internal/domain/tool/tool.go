// Package tool provides the domain model for persisted tool records.
//
// A record describes where a tool's behavior comes from: "internal" names a
// statically implemented definition, "external" carries the identifier of a
// workflow on the configured flow runner. The record's parameters schema,
// when present, must deserialize into a validator compatible with the
// arguments the model is instructed to produce.
package tool

import (
	"encoding/json"
	"errors"
	"time"
)

// Source tells the registry how to resolve a record into behavior.
type Source string

const (
	SourceInternal Source = "internal"
	SourceExternal Source = "external"
)

// Visibility controls who can attach a tool to an agent.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Record is one persisted tool. Name is unique per Source.
type Record struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	VerboseName      string          `json:"verbose_name"`
	Description      string          `json:"description"`
	Source           Source          `json:"source"`
	Data             json.RawMessage `json:"data,omitempty"`
	ParametersSchema json.RawMessage `json:"parameters_schema,omitempty"`
	Visibility       Visibility      `json:"visibility"`
	OwnerID          string          `json:"owner_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ExternalData is the source-specific payload of an external-flow record.
type ExternalData struct {
	FlowID string `json:"flow_id"`
}

// FlowID extracts the workflow identifier from an external record's Data.
func (r *Record) FlowID() (string, error) {
	if r.Source != SourceExternal {
		return "", errors.New("not an external tool")
	}
	var d ExternalData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return "", errors.New("malformed external tool data")
	}
	if d.FlowID == "" {
		return "", errors.New("external tool data missing flow_id")
	}
	return d.FlowID, nil
}

// CreateRequest is the input for registering an external-flow tool.
type CreateRequest struct {
	Name        string     `json:"name"`
	VerboseName string     `json:"verbose_name"`
	Description string     `json:"description"`
	FlowID      string     `json:"flow_id"`
	Visibility  Visibility `json:"visibility"`
}

// Validate checks that a CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.FlowID == "" {
		return errors.New("flow_id is required")
	}
	switch r.Visibility {
	case VisibilityPublic, VisibilityPrivate:
	default:
		return errors.New("visibility must be public or private")
	}
	return nil
}

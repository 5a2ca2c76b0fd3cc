// Package schema serializes tool parameter schemas to a storable,
// language-neutral JSON form and reconstructs validators from it.
//
// The storable form is a plain JSON Schema document. Executable validation
// logic is never serialized: a node may instead carry an "x-refinement" key
// naming a predicate, and the owning tool definition supplies the matching
// name->func map at the deserialize call site.
package schema

import (
	"encoding/json"
	"fmt"
)

// Refinement is a named predicate applied to a decoded value after
// structural validation passes.
type Refinement func(value any) error

// Node is one descriptor in the serialized schema tree. Field names follow
// JSON Schema so the stored form is directly compilable.
type Node struct {
	Type        string           `json:"type,omitempty"`
	Description string           `json:"description,omitempty"`
	Properties  map[string]*Node `json:"properties,omitempty"`
	Required    []string         `json:"required,omitempty"`
	Items       *Node            `json:"items,omitempty"`
	Enum        []string         `json:"enum,omitempty"`
	Refinement  string           `json:"x-refinement,omitempty"`
}

// Serialize renders a schema tree to its storable JSON form.
func Serialize(root *Node) (json.RawMessage, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("serialize schema: %w", err)
	}
	return data, nil
}

// Refine tags the node with a named predicate resolved at deserialize time.
func (n *Node) Refine(name string) *Node {
	n.Refinement = name
	return n
}

// Object is a convenience constructor for a root object node.
func Object(props map[string]*Node, required ...string) *Node {
	return &Node{Type: "object", Properties: props, Required: required}
}

// String returns a string node with the given description.
func String(desc string) *Node { return &Node{Type: "string", Description: desc} }

// Number returns a number node with the given description.
func Number(desc string) *Node { return &Node{Type: "number", Description: desc} }

// StringEnum returns a string node restricted to the given values.
func StringEnum(desc string, values ...string) *Node {
	return &Node{Type: "string", Description: desc, Enum: values}
}

// Array returns an array node of the given item shape.
func Array(desc string, items *Node) *Node {
	return &Node{Type: "array", Description: desc, Items: items}
}

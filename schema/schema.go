// Package schema describes and validates the flat argument maps that
// operations accept.
//
// A Schema is an ordered list of fields. Validate applies defaults, coerces
// loosely typed input (query strings, form values, JSON bodies) to each
// field's declared type and collects every error of the pass. Fields of type
// JSON carry a nested Node tree and are parsed and checked recursively by
// ValidateNode.
package schema

import (
	"regexp"

	"github.com/teranos/opsgate/errors"
)

// Type is the declared type of a field or node
type Type string

// Supported types
const (
	String  Type = "string"
	Number  Type = "number"
	Boolean Type = "boolean"
	Array   Type = "array"
	Object  Type = "object"
	JSON    Type = "json" // opaque JSON, validated against Field.Nested
)

func (t Type) known() bool {
	switch t {
	case String, Number, Boolean, Array, Object, JSON:
		return true
	}
	return false
}

// Field declares one named argument.
// A nil Default means the field has no default.
type Field struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Nested      *Node  `json:"nested,omitempty"`
}

// Node is a nested schema for the contents of an opaque JSON field.
// Nodes use strict JSON types (numbers are float64). An empty Type accepts
// any value. Object properties not listed in Properties are allowed.
type Node struct {
	Type       Type             `json:"type,omitempty"`
	Properties map[string]*Node `json:"properties,omitempty"`
	Required   []string         `json:"required,omitempty"`
	Items      *Node            `json:"items,omitempty"`
}

// Schema is an ordered argument declaration.
// Nodes and defaults are shared between copies and must not be mutated
// once a schema is in use.
type Schema []Field

var (
	identPattern       = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	placeholderPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)
)

// Check reports declaration errors: empty or duplicate names, names that
// are not usable as JS identifiers, unknown types, and a Nested node given
// without type JSON (or missing with it).
func (s Schema) Check() error {
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f.Name == "" {
			return errors.Newf("field %d has no name", i)
		}
		if !identPattern.MatchString(f.Name) {
			return errors.Newf("field %q is not a valid identifier", f.Name)
		}
		if seen[f.Name] {
			return errors.Newf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		if !f.Type.known() {
			return errors.Newf("field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Type == JSON && f.Nested == nil {
			return errors.Newf("field %q is opaque JSON but has no nested schema", f.Name)
		}
		if f.Type != JSON && f.Nested != nil {
			return errors.Newf("field %q has a nested schema but type %q", f.Name, f.Type)
		}
	}
	return nil
}

// Clone returns a copy of the field list
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Lookup returns the field named name
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns field names in declaration order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Placeholders returns the distinct [name] placeholders of a template in
// order of first appearance.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// FromTemplate derives a schema from template placeholders: each becomes a
// string field defaulting to "".
func FromTemplate(template string) Schema {
	names := Placeholders(template)
	s := make(Schema, 0, len(names))
	for _, n := range names {
		s = append(s, Field{Name: n, Type: String, Default: ""})
	}
	return s
}

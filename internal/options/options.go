// Package options implements the typed option dictionaries consumed by
// function kinds and linear-solver backends at construction time.
//
// A Schema declares the option names a component accepts, their types, their
// defaults and a documentation string; Validate rejects unknown names and
// type mismatches before any numeric work starts.
package options

import (
	"fmt"
	"sort"
	"strings"
)

// Dict is an option dictionary as supplied by the caller.
type Dict map[string]any

// Type enumerates the supported option value types.
type Type uint8

// Supported option types.
const (
	String Type = iota
	Float
	Int
	Bool
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Entry describes one declared option.
type Entry struct {
	Type    Type
	Doc     string
	Default any
}

// Schema declares the options a component accepts.
type Schema struct {
	entries map[string]Entry
}

// NewSchema builds a schema from declared entries.
func NewSchema(entries map[string]Entry) *Schema {
	copied := make(map[string]Entry, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Schema{entries: copied}
}

// Names returns the declared option names, sorted.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.entries))
	for k := range s.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Entry returns the declaration for name.
func (s *Schema) Entry(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

func matches(t Type, v any) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Float:
		switch v.(type) {
		case float64, int:
			// Integer literals are accepted where a float is declared.
			return true
		}
		return false
	case Int:
		_, ok := v.(int)
		return ok
	case Bool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

// Validate checks a dictionary against the schema: every key must be
// declared and every value must match the declared type.
func (s *Schema) Validate(d Dict) error {
	for k, v := range d {
		e, ok := s.entries[k]
		if !ok {
			return fmt.Errorf("options: unknown option %q, available: %s", k, strings.Join(s.Names(), ", "))
		}
		if !matches(e.Type, v) {
			return fmt.Errorf("options: option %q expects %s, got %T", k, e.Type, v)
		}
	}
	return nil
}

// Float reads a float option, falling back to the declared default.
func (s *Schema) Float(d Dict, name string) float64 {
	v := s.lookup(d, name)
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return 0
}

// Int reads an int option, falling back to the declared default.
func (s *Schema) Int(d Dict, name string) int {
	if v, ok := s.lookup(d, name).(int); ok {
		return v
	}
	return 0
}

// String reads a string option, falling back to the declared default.
func (s *Schema) String(d Dict, name string) string {
	if v, ok := s.lookup(d, name).(string); ok {
		return v
	}
	return ""
}

// Bool reads a bool option, falling back to the declared default.
func (s *Schema) Bool(d Dict, name string) bool {
	if v, ok := s.lookup(d, name).(bool); ok {
		return v
	}
	return false
}

func (s *Schema) lookup(d Dict, name string) any {
	if v, ok := d[name]; ok {
		return v
	}
	if e, ok := s.entries[name]; ok {
		return e.Default
	}
	return nil
}

// Package ioscheme implements named input/output schemes: an ordered list of
// entry names with optional descriptions, supporting index lookup by name.
//
// Schemes are purely diagnostic bookkeeping for the function core; they never
// influence evaluation.
package ioscheme

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a name is absent from a scheme.
var ErrNotFound = errors.New("ioscheme: entry not found")

// Scheme is an immutable ordered list of entry names with descriptions.
type Scheme struct {
	entries      []string
	descriptions []string
}

// New creates a scheme. descriptions may be nil or must match entries in
// length.
func New(entries, descriptions []string) (*Scheme, error) {
	if descriptions == nil {
		descriptions = make([]string, len(entries))
	}
	if len(descriptions) != len(entries) {
		return nil, fmt.Errorf("ioscheme: %d descriptions for %d entries", len(descriptions), len(entries))
	}
	return &Scheme{
		entries:      append([]string(nil), entries...),
		descriptions: append([]string(nil), descriptions...),
	}, nil
}

// Default returns a scheme with generated names prefix0..prefix(n-1).
func Default(prefix string, n int) *Scheme {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return &Scheme{entries: entries, descriptions: make([]string, n)}
}

// Len returns the number of entries.
func (s *Scheme) Len() int { return len(s.entries) }

// Entry returns the name at index i.
func (s *Scheme) Entry(i int) (string, error) {
	if i < 0 || i >= len(s.entries) {
		return "", fmt.Errorf("ioscheme: index %d out of range, scheme has %d entries", i, len(s.entries))
	}
	return s.entries[i], nil
}

// Describe returns "name 'description'" for index i, or just the name when
// no description was given.
func (s *Scheme) Describe(i int) (string, error) {
	name, err := s.Entry(i)
	if err != nil {
		return "", err
	}
	if s.descriptions[i] == "" {
		return name, nil
	}
	return fmt.Sprintf("%s '%s'", name, s.descriptions[i]), nil
}

// Index returns the position of name.
func (s *Scheme) Index(name string) (int, error) {
	for i, e := range s.entries {
		if e == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q, available entries: %s", ErrNotFound, name, strings.Join(s.entries, ", "))
}

// String renders the scheme as a comma-separated entry list.
func (s *Scheme) String() string {
	return "io(" + strings.Join(s.entries, ", ") + ")"
}

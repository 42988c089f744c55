package model

import "encoding/json"

// Presence distinguishes a value the source never carried from one it
// carried but could not state.
type Presence uint8

const (
	Absent  Presence = iota // Source has no such column or section
	Unknown                 // Source carried the field but the value is unknown
	Known                   // Source stated a value
)

// Field is an optional value with explicit presence.
type Field[T comparable] struct {
	Value    T
	Presence Presence
}

// Some returns a known field.
func Some[T comparable](v T) Field[T] {
	return Field[T]{Value: v, Presence: Known}
}

// None returns a field the source reported as unknown.
func None[T comparable]() Field[T] {
	return Field[T]{Presence: Unknown}
}

// IsKnown reports whether the field holds a value.
func (f Field[T]) IsKnown() bool {
	return f.Presence == Known
}

// Get returns the value and whether it is known.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Presence == Known
}

// Any returns the value as an interface, or nil unless known.
func (f Field[T]) Any() any {
	if f.Presence != Known {
		return nil
	}
	return f.Value
}

// Or returns the value when known and def otherwise.
func (f Field[T]) Or(def T) T {
	if f.Presence == Known {
		return f.Value
	}
	return def
}

// MarshalJSON encodes known values directly and everything else as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Presence != Known {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

package models

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch field for a nullable column. The zero value leaves the
// column untouched; Null clears it; Some sets it. Tag fields with omitzero.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Some returns a Nullable that sets the column to v.
func Some[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: &v} }

// Null returns a Nullable that clears the column.
func Null[T any]() Nullable[T] { return Nullable[T]{Set: true} }

// IsZero reports whether the field is absent from the patch.
func (n Nullable[T]) IsZero() bool { return !n.Set }

// MarshalJSON encodes a cleared field as null.
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// UnmarshalJSON marks the field present; a JSON null clears the column.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

package core

import (
	"bytes"
	"encoding/json"
)

// Optional carries a partial-update field. Set is true when the field was
// supplied at all; Null is true when it was supplied as an explicit null.
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns a supplied, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Get returns the value and whether it was supplied with a non-null value.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set && !o.Null
}

// UnmarshalJSON is only invoked when the key is present in the document,
// which is what separates "absent" from "null".
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// Require resolves a supplied field: absent yields ok=false, explicit null
// yields a validation error naming field.
func Require[T any](o Optional[T], field string) (T, bool, error) {
	var zero T
	if !o.Set {
		return zero, false, nil
	}
	if o.Null {
		return zero, false, Validation(field, field+" cannot be null")
	}
	return o.Value, true, nil
}

// Package extract implements single-field extraction with a non-fatal failure
// contract: every attempt yields a value, an absence marker, or a failure
// marker, and never an error the caller has to handle.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// State tags the variant held by a Field.
type State uint8

// Field states. The zero value is StateAbsent.
const (
	StateAbsent State = iota
	StateValue
	StateFailed
)

const failedLiteral = "failed"

// failedJSON is how a failed field is rendered to sinks. It is an object so a
// text field whose value is "failed" stays a value.
var failedJSON = []byte(`{"failed":true}`)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateValue:
		return "value"
	case StateFailed:
		return failedLiteral
	default:
		return "absent"
	}
}

// Field is a tagged variant: Value(T), Absent, or Failed.
//
// Absent means there was nothing to extract. Failed means extraction was
// attempted and could not be recovered; the detail stage may still complete it.
type Field[T any] struct {
	value T
	state State
}

// Value wraps v in a populated Field.
func Value[T any](v T) Field[T] {
	return Field[T]{value: v, state: StateValue}
}

// Absent returns an empty Field.
func Absent[T any]() Field[T] {
	return Field[T]{}
}

// Failed returns a Field marked as an unrecoverable extraction attempt.
func Failed[T any]() Field[T] {
	return Field[T]{state: StateFailed}
}

// Miss returns the sentinel Field for the given state. StateValue is treated as
// StateAbsent since there is no value to carry.
func Miss[T any](s State) Field[T] {
	if s == StateFailed {
		return Failed[T]()
	}
	return Absent[T]()
}

// State reports which variant f holds.
func (f Field[T]) State() State { return f.state }

// Get returns the value and whether one is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == StateValue
}

// OrElse returns the value or def when f holds no value.
func (f Field[T]) OrElse(def T) T {
	if f.state == StateValue {
		return f.value
	}
	return def
}

// IsValue reports whether f holds a value.
func (f Field[T]) IsValue() bool { return f.state == StateValue }

// IsAbsent reports whether f is the absence marker.
func (f Field[T]) IsAbsent() bool { return f.state == StateAbsent }

// IsFailed reports whether f is the failure marker.
func (f Field[T]) IsFailed() bool { return f.state == StateFailed }

// String implements fmt.Stringer.
func (f Field[T]) String() string {
	if f.state == StateValue {
		return fmt.Sprint(f.value)
	}
	return "<" + f.state.String() + ">"
}

// MarshalJSON renders a value as itself, Absent as null and Failed as
// {"failed":true}.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	switch f.state {
	case StateValue:
		data, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("marshal field value: %w", err)
		}
		return data, nil
	case StateFailed:
		return failedJSON, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = Absent[T]()
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var marker struct {
			Failed bool `json:"failed"`
		}
		if err := json.Unmarshal(data, &marker); err == nil && marker.Failed {
			*f = Failed[T]()
			return nil
		}
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal field value: %w", err)
	}
	*f = Value(v)
	return nil
}

package errors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// StructuredError is an error with a cause and metadata fields, which are
// rendered as attributes by Log and appended to the message by Fprint.
type StructuredError struct {
	err      error
	metadata map[string]any
	cause    error
}

// Error implements the error interface.
func (e StructuredError) Error() string {
	if e.cause == nil {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.err, e.cause)
}

// Unwrap allows errors.Is and errors.As to work.
func (e StructuredError) Unwrap() []error {
	var errs []error
	if e.err != nil {
		errs = append(errs, e.err)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Cause returns the cause error of this error.
func (e StructuredError) Cause() error {
	return e.cause
}

// Metadata returns a copy of the metadata map.
func (e StructuredError) Metadata() map[string]any {
	if e.metadata == nil {
		return nil
	}
	return maps.Clone(e.metadata)
}

// fields renders the metadata as sorted key=value pairs.
func (e StructuredError) fields() string {
	keys := slices.Sorted(maps.Keys(e.metadata))
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, e.metadata[k])
	}
	return strings.Join(pairs, " ")
}

// NewWith creates a new StructuredError from a message string with optional metadata.
func NewWith(msg string, fields ...any) *StructuredError {
	return With(errors.New(msg), fields...)
}

// NewWithCause creates a new StructuredError from a message string with a cause
// and optional metadata.
func NewWithCause(msg string, cause error, fields ...any) *StructuredError {
	return WithCause(errors.New(msg), cause, fields...)
}

// With adds metadata to an error. If the error is already a StructuredError,
// the metadata is merged, and newer fields overwrite older ones.
func With(err error, fields ...any) *StructuredError {
	var cause error
	if se, ok := err.(*StructuredError); ok {
		cause = se.cause
	}
	return structured(err, cause, fields)
}

// WithCause creates a StructuredError with a cause and optional metadata.
func WithCause(err, cause error, fields ...any) *StructuredError {
	return structured(err, cause, fields)
}

func structured(err, cause error, fields []any) *StructuredError {
	if len(fields)%2 != 0 {
		panic("an even number of fields is required")
	}

	metadata := make(map[string]any, len(fields)/2)
	if se, ok := err.(*StructuredError); ok {
		maps.Copy(metadata, se.metadata)
		err = se.err
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			panic("keys must be strings")
		}
		metadata[key] = fields[i+1]
	}

	return &StructuredError{err: err, metadata: metadata, cause: cause}
}

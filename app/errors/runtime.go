package errors

import (
	"fmt"
	"io"
	"os"
)

// RuntimeError is an error that occurred while running a command, with an
// optional hint for the user about how to resolve it.
type RuntimeError struct {
	Msg  string
	Err  error
	Hint string
}

// NewRuntimeError returns a new RuntimeError.
func NewRuntimeError(msg string, err error, hint string) *RuntimeError {
	return &RuntimeError{Msg: msg, Err: err, Hint: hint}
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Err)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Errorf writes err to stderr, followed by its hint if it has one.
func Errorf(err error) {
	Fprint(os.Stderr, err)
}

// Fprint writes err to w, followed by its hint if it has one. The metadata
// of a StructuredError in the chain is appended to the message.
func Fprint(w io.Writer, err error) {
	var serr *StructuredError
	if As(err, &serr) && len(serr.metadata) > 0 {
		fmt.Fprintf(w, "Error: %s [%s]\n", err, serr.fields())
	} else {
		fmt.Fprintf(w, "Error: %s\n", err)
	}

	var rerr *RuntimeError
	if As(err, &rerr) && rerr.Hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", rerr.Hint)
	}
}

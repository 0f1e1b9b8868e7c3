package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := fmt.Errorf("wrapped: %w",
		NewRuntimeError("failed opening database", cause, "check the --database-url value"))

	assert.EqualError(t, err, "wrapped: failed opening database: connection refused")
	assert.ErrorIs(t, err, cause)

	var buf bytes.Buffer
	Fprint(&buf, err)
	assert.Equal(t, "Error: wrapped: failed opening database: connection refused\n"+
		"Hint: check the --database-url value\n", buf.String())

	buf.Reset()
	Fprint(&buf, cause)
	assert.Equal(t, "Error: connection refused\n", buf.String())
}

func TestStructuredError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := WithCause(errors.New("failed applying migrations"), cause, "dir", "/m")
	err = With(err, "version", 2, "dir", "/n")

	assert.EqualError(t, err, "failed applying migrations: disk full")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Cause())
	assert.Equal(t, map[string]any{"dir": "/n", "version": 2}, err.Metadata())

	var buf bytes.Buffer
	Fprint(&buf, fmt.Errorf("serve: %w", err))
	assert.Equal(t, "Error: serve: failed applying migrations: disk full [dir=/n version=2]\n",
		buf.String())

	assert.Panics(t, func() { NewWith("x", "odd") })
	assert.Panics(t, func() { NewWith("x", 1, 2) })
}

//nolint:paralleltest // Modifies the default logger.
func TestLog(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Log(NewWithCause("failed applying migrations", errors.New("locked"), "dir", "/m"))
	assert.Contains(t, buf.String(),
		`level=ERROR msg="failed applying migrations" cause=locked dir=/m`)

	buf.Reset()
	Log(errors.New("plain"))
	assert.Contains(t, buf.String(), "level=ERROR msg=plain")
}

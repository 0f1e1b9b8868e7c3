package errors

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
)

// As is errors.As, re-exported since this package shadows the standard one.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Log logs an error using the default slog logger, extracting metadata if it's
// a StructuredError.
func Log(err error) {
	var serr *StructuredError
	if !errors.As(err, &serr) {
		slog.Error(err.Error())
		return
	}

	args := make([]any, 0, len(serr.metadata)*2+2)
	if serr.cause != nil {
		args = append(args, "cause", serr.cause.Error())
	}
	for _, k := range slices.Sorted(maps.Keys(serr.metadata)) {
		args = append(args, k, serr.metadata[k])
	}

	slog.Error(serr.err.Error(), args...)
}

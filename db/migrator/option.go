package migrator

import (
	"errors"
	"log/slog"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Option is a function that allows configuring the Runner.
type Option func(*Runner) error

// WithFS sets the filesystem the migration directories are read from. It also
// becomes the filesystem of the default Source.
func WithFS(fs vfs.FileSystem) Option {
	return func(r *Runner) error {
		if fs == nil {
			return errors.New("filesystem is nil")
		}
		r.fs = fs
		return nil
	}
}

// WithSource sets the loader of migration directories.
func WithSource(src Source) Option {
	return func(r *Runner) error {
		if src == nil {
			return errors.New("migration source is nil")
		}
		r.source = src
		return nil
	}
}

// WithLogger sets the logger of the Runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		r.logger = logger.With("component", "migrator")
		return nil
	}
}

// WithReporter sets the Reporter used to render failed migrations.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) error {
		if rep == nil {
			return errors.New("reporter is nil")
		}
		r.reporter = rep
		return nil
	}
}

package context

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/strata/app/config"
	"go.hackfix.me/strata/db"
	"go.hackfix.me/strata/models"
)

// Context contains common objects used by the application. It is passed around
// the application to avoid direct dependencies on external systems, and make
// testing easier.
type Context struct {
	Ctx        context.Context    // global context
	FS         vfs.FileSystem     // filesystem
	Env        models.Environment // process environment
	Logger     *slog.Logger       // global logger
	TimeSource models.TimeSource
	Config     *config.Config
	// DB is the target database. If nil, commands open the database at the
	// configured URL.
	DB *db.DB

	// Standard streams
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Metadata
	Version *VersionInfo
}

// OpenDB returns the target database, opening it if it wasn't set already.
func (c *Context) OpenDB() (*db.DB, error) {
	if c.DB != nil {
		return c.DB, nil
	}

	dbURL := c.Config.DatabaseURL.V
	if path, ok := strings.CutPrefix(dbURL, "sqlite://"); ok {
		if err := c.FS.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed creating database directory: %w", err)
		}
	}

	d, err := db.Open(c.Ctx, dbURL, c.TimeSource.Now)
	if err != nil {
		return nil, err
	}
	c.DB = d

	return d, nil
}

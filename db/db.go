package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"
	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/jackc/pgx/v5/stdlib"

	"go.hackfix.me/strata/crypto"
	"go.hackfix.me/strata/db/types"
)

// DB wraps sql.DB with the dialect and a safe identifier of the database.
type DB struct {
	*sql.DB
	ctx     context.Context
	timeNow func() time.Time
	dialect types.Dialect
	name    string
}

var _ types.Querier = (*DB)(nil)

// Open connects to the database at the given URL. Supported URLs are:
//   - sqlite://<path>, or a plain filesystem path
//   - sqlite::memory:, for a private in-memory database
//   - file:<name>?<params>, passed unchanged to the SQLite driver
//   - postgres://... and postgresql://..., passed to the pgx driver
func Open(ctx context.Context, dbURL string, timeNow func() time.Time) (*DB, error) {
	if dbURL == "" {
		return nil, errors.New("database URL is empty")
	}

	switch {
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return openPostgres(ctx, dbURL, timeNow)
	case dbURL == "sqlite::memory:":
		rnd, err := crypto.RandomData(8)
		if err != nil {
			return nil, err
		}
		return openSQLite(ctx, fmt.Sprintf("file:strata-%x?mode=memory&cache=shared", rnd), timeNow)
	case strings.HasPrefix(dbURL, "sqlite://"):
		return openSQLite(ctx, strings.TrimPrefix(dbURL, "sqlite://"), timeNow)
	case strings.Contains(dbURL, "://"):
		u, _ := url.Parse(dbURL)
		scheme := "unknown"
		if u != nil {
			scheme = u.Scheme
		}
		return nil, fmt.Errorf("unsupported database URL scheme '%s'", scheme)
	default:
		return openSQLite(ctx, dbURL, timeNow)
	}
}

func openSQLite(ctx context.Context, path string, timeNow func() time.Time) (*DB, error) {
	if path == "" {
		return nil, errors.New("SQLite database path is empty")
	}

	var d *DB
	if strings.Contains(path, "mode=memory") || strings.Contains(path, ":memory:") {
		defer func() {
			if d != nil {
				// See https://github.com/mattn/go-sqlite3#faq
				d.SetMaxIdleConns(10)
				d.SetConnMaxLifetime(time.Duration(math.Inf(1)))
			}
		}()
	}

	// Enable foreign key enforcement on every connection of the pool.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)"

	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed opening SQLite database: %w", err)
	}

	d = &DB{
		DB: sqliteDB, ctx: ctx, timeNow: timeNow, dialect: types.DialectSQLite,
		name: fmt.Sprintf("SQLite database '%s'", sqlitePath(path)),
	}

	if err = d.PingContext(ctx); err != nil {
		_ = sqliteDB.Close()
		return nil, fmt.Errorf("failed connecting to %s: %w", d.name, err)
	}

	return d, nil
}

func openPostgres(ctx context.Context, dbURL string, timeNow func() time.Time) (*DB, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		// The parse error may include the password.
		return nil, errors.New("failed parsing PostgreSQL database URL")
	}

	pgDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed opening PostgreSQL database: %w", err)
	}

	d := &DB{
		DB: pgDB, ctx: ctx, timeNow: timeNow, dialect: types.DialectPostgres,
		name: fmt.Sprintf("PostgreSQL database '%s%s'", u.Host, u.Path),
	}

	if err = d.PingContext(ctx); err != nil {
		_ = pgDB.Close()
		return nil, fmt.Errorf("failed connecting to %s: %w", d.name, err)
	}

	return d, nil
}

// sqlitePath strips the URI scheme and query parameters from a SQLite DSN.
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// String returns an identifier of the database that is safe to show to users.
// It never contains credentials.
func (d *DB) String() string {
	return d.name
}

// Dialect returns the SQL dialect of the database.
func (d *DB) Dialect() types.Dialect {
	return d.dialect
}

// NewContext returns a new child context of the main database context.
func (d *DB) NewContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(d.ctx)
}

// TimeNow returns the current system time.
func (d *DB) TimeNow() time.Time {
	return d.timeNow()
}

package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"

	"go.hackfix.me/strata/db/types"
)

// locker serializes migration passes on a database.
type locker interface {
	acquire(ctx context.Context, conn *sql.Conn) (release func(), err error)
}

func newLocker(dialect types.Dialect, dbName, table string) locker {
	if dialect == types.DialectPostgres {
		return &pgLocker{key: lockKey(table)}
	}
	return sqliteLockFor(dbName + "/" + table)
}

// pgLocker uses a session-level advisory lock. The lock belongs to the
// connection it was acquired on, so it must be released on the same one.
type pgLocker struct {
	key int64
}

func (l *pgLocker) acquire(ctx context.Context, conn *sql.Conn) (func(), error) {
	_, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, l.key)
	if err != nil {
		return nil, fmt.Errorf("failed acquiring advisory lock %d: %w", l.key, err)
	}

	return func() {
		//nolint:contextcheck // The lock must be released even if ctx is done.
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key)
	}, nil
}

// sqliteLocker is a process-local lock. SQLite's own file locking protects
// against writers in other processes.
type sqliteLocker struct {
	sem chan struct{}
}

var sqliteLocks sync.Map

func sqliteLockFor(key string) *sqliteLocker {
	l, _ := sqliteLocks.LoadOrStore(key, &sqliteLocker{sem: make(chan struct{}, 1)})
	return l.(*sqliteLocker) //nolint:forcetypeassert // Only sqliteLockers are stored.
}

func (l *sqliteLocker) acquire(ctx context.Context, _ *sql.Conn) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed acquiring migrations lock: %w", ctx.Err())
	}
}

// lockKey hashes the ledger table name into an advisory lock key.
func lockKey(table string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("strata:" + table))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // Truncation is fine for a lock key.
}

package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.hackfix.me/strata/crypto"
	"go.hackfix.me/strata/db/models"
	"go.hackfix.me/strata/db/types"
)

// Database is the target of an SQLLedger. It's satisfied by *db.DB.
type Database interface {
	fmt.Stringer
	Dialect() types.Dialect
	Conn(ctx context.Context) (*sql.Conn, error)
	TimeNow() time.Time
}

// SQLLedger is a Ledger stored in a table of the database the migrations are
// applied to.
type SQLLedger struct {
	db          Database
	table       models.MigrationTable
	lock        locker
	lockTimeout time.Duration
	logger      *slog.Logger
}

var _ Ledger = (*SQLLedger)(nil)

// LedgerOption configures an SQLLedger.
type LedgerOption func(*SQLLedger)

// WithTable sets the name of the ledger table. An empty name keeps the
// default.
func WithTable(name string) LedgerOption {
	return func(l *SQLLedger) {
		if name != "" {
			l.table.Name = name
		}
	}
}

// WithLockTimeout limits how long a pass waits for the migrations lock held by
// another process. Zero waits until the context is done.
func WithLockTimeout(timeout time.Duration) LedgerOption {
	return func(l *SQLLedger) {
		l.lockTimeout = timeout
	}
}

// WithLedgerLogger sets the logger of the ledger.
func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *SQLLedger) {
		l.logger = logger.With("component", "ledger")
	}
}

// NewSQLLedger returns a new ledger stored in db.
func NewSQLLedger(db Database, opts ...LedgerOption) *SQLLedger {
	l := &SQLLedger{
		db:     db,
		table:  models.MigrationTable{Name: DefaultTable, Dialect: db.Dialect()},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lock = newLocker(l.table.Dialect, db.String(), l.table.Name)

	return l
}

// String returns the identifier of the database.
func (l *SQLLedger) String() string {
	return l.db.String()
}

// Table returns the name of the ledger table.
func (l *SQLLedger) Table() string {
	return l.table.Name
}

// Applied returns the ledger entries in ascending version order. It returns
// no entries if the ledger table doesn't exist yet.
func (l *SQLLedger) Applied(ctx context.Context) ([]*models.AppliedMigration, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed connecting to %s: %w", l.db, err)
	}
	defer conn.Close()

	exists, err := l.table.Exists(ctx, conn)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []*models.AppliedMigration{}, nil
	}

	return l.table.Applied(ctx, conn, nil)
}

// ApplyOutstanding implements Ledger. The call runs on a single connection
// while holding the migrations lock, which is released when it returns. A
// Runner calls it once per layer, so other processes may apply migrations
// between layers of the same pass.
func (l *SQLLedger) ApplyOutstanding(
	ctx context.Context, migrations []*Migration, ignoreMissing bool,
) (n int, err error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed connecting to %s: %w", l.db, err)
	}
	defer conn.Close()

	release, err := l.acquireLock(ctx, conn)
	if err != nil {
		return 0, err
	}
	defer release()

	if err = l.table.Create(ctx, conn); err != nil {
		return 0, err
	}

	applied, err := l.table.Applied(ctx, conn, nil)
	if err != nil {
		return 0, err
	}

	if err = l.verify(applied, migrations, ignoreMissing); err != nil {
		return 0, err
	}

	appliedVersions := make(map[int64]struct{}, len(applied))
	for _, am := range applied {
		appliedVersions[am.Version] = struct{}{}
	}

	for _, m := range migrations {
		if !m.Kind.Applicable() {
			continue
		}
		if _, ok := appliedVersions[m.Version]; ok {
			continue
		}
		if err = l.apply(ctx, conn, m); err != nil {
			return n, err
		}
		appliedVersions[m.Version] = struct{}{}
		n++
	}

	return n, nil
}

func (l *SQLLedger) acquireLock(ctx context.Context, conn *sql.Conn) (func(), error) {
	lockCtx := ctx
	if l.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.lockTimeout)
		defer cancel()
	}

	l.logger.Debug("acquiring migrations lock", "table", l.table.Name)
	release, err := l.lock.acquire(lockCtx, conn)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("timed out after %s waiting for the migrations lock on %s",
				l.lockTimeout, l.db)
		}
		return nil, err
	}

	return release, nil
}

// verify checks the ledger against the migrations about to be applied.
func (l *SQLLedger) verify(
	applied []*models.AppliedMigration, migrations []*Migration, ignoreMissing bool,
) error {
	known := make(map[int64]*Migration, len(migrations))
	for _, m := range migrations {
		if m.Kind.Applicable() {
			known[m.Version] = m
		}
	}

	for _, am := range applied {
		if !am.Success {
			return &DirtyError{Version: am.Version, Description: am.Description}
		}

		m, ok := known[am.Version]
		if !ok {
			if ignoreMissing {
				continue
			}
			return &MissingVersionError{Version: am.Version, Description: am.Description}
		}

		if !crypto.EqualChecksums(m.Checksum, am.Checksum) {
			return &ChecksumMismatchError{Migration: m, Applied: am.Checksum}
		}
	}

	return nil
}

func (l *SQLLedger) apply(ctx context.Context, conn *sql.Conn, m *Migration) error {
	logger := l.logger.With("version", m.Version, "description", m.Description)
	if m.NoTx {
		logger.Debug("applying migration without a transaction")
		return l.applyNoTx(ctx, conn, m)
	}

	logger.Debug("applying migration")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	installedOn := l.db.TimeNow()
	start := time.Now()
	if _, err = tx.ExecContext(ctx, m.SQL); err != nil {
		return &ExecuteError{Version: m.Version, Err: err}
	}

	err = l.table.Insert(ctx, tx, &models.AppliedMigration{
		Version:       m.Version,
		Description:   m.Description,
		InstalledOn:   installedOn,
		Success:       true,
		Checksum:      m.Checksum,
		ExecutionTime: time.Since(start),
	})
	if err != nil {
		return fmt.Errorf("failed recording migration %d: %w", m.Version, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed committing migration %d: %w", m.Version, err)
	}

	return nil
}

// applyNoTx records the migration as unsuccessful before running it, so that
// a failure partway leaves a dirty entry behind.
func (l *SQLLedger) applyNoTx(ctx context.Context, conn *sql.Conn, m *Migration) error {
	err := l.table.Insert(ctx, conn, &models.AppliedMigration{
		Version:     m.Version,
		Description: m.Description,
		InstalledOn: l.db.TimeNow(),
		Checksum:    m.Checksum,
	})
	if err != nil {
		return fmt.Errorf("failed recording migration %d: %w", m.Version, err)
	}

	start := time.Now()
	if _, err = conn.ExecContext(ctx, m.SQL); err != nil {
		return &ExecuteError{Version: m.Version, Err: err}
	}

	if err = l.table.MarkSucceeded(ctx, conn, m.Version, time.Since(start)); err != nil {
		return fmt.Errorf("failed recording migration %d: %w", m.Version, err)
	}

	return nil
}

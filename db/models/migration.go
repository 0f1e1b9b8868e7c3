package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.hackfix.me/strata/db/types"
)

// AppliedMigration is a row of the migrations ledger table. A row is written
// once per version when the migration is applied.
type AppliedMigration struct {
	Version       int64
	Description   string
	InstalledOn   time.Time
	Success       bool
	Checksum      []byte
	ExecutionTime time.Duration
}

// MigrationTable is the ledger table that records applied migrations.
type MigrationTable struct {
	Name    string
	Dialect types.Dialect
}

// ident returns the table name as a quoted SQL identifier.
func (t MigrationTable) ident() string {
	return `"` + strings.ReplaceAll(t.Name, `"`, `""`) + `"`
}

// Create creates the ledger table if it doesn't exist.
func (t MigrationTable) Create(ctx context.Context, d types.Querier) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version        BIGINT PRIMARY KEY,
		description    TEXT NOT NULL,
		installed_on   TIMESTAMP NOT NULL,
		success        BOOLEAN NOT NULL,
		checksum       %s NOT NULL,
		execution_time BIGINT NOT NULL
	)`, t.ident(), t.Dialect.BlobType())

	if _, err := d.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed creating table '%s': %w", t.Name, err)
	}

	return nil
}

// Exists returns true if the ledger table exists.
func (t MigrationTable) Exists(ctx context.Context, d types.Querier) (bool, error) {
	var query string
	switch t.Dialect {
	case types.DialectPostgres:
		query = `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = ?`
	default:
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	}

	var count int
	err := d.QueryRowContext(ctx, t.Dialect.Rebind(query), t.Name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed checking if table '%s' exists: %w", t.Name, err)
	}

	return count > 0, nil
}

// Insert stores a new ledger row. It returns a types.DuplicateError if the
// version was already recorded.
func (t MigrationTable) Insert(ctx context.Context, d types.Querier, m *AppliedMigration) error {
	stmt := t.Dialect.Rebind(fmt.Sprintf(`INSERT INTO %s
		(version, description, installed_on, success, checksum, execution_time)
		VALUES (?, ?, ?, ?, ?, ?)`, t.ident()))

	_, err := d.ExecContext(ctx, stmt,
		m.Version, m.Description, m.InstalledOn.UTC(), m.Success, m.Checksum,
		m.ExecutionTime.Nanoseconds())
	if err != nil {
		return types.Err("migration", fmt.Sprintf("version %d", m.Version), err)
	}

	return nil
}

// MarkSucceeded flags the ledger row of a migration as successful, and
// updates its execution time.
func (t MigrationTable) MarkSucceeded(
	ctx context.Context, d types.Querier, version int64, execTime time.Duration,
) error {
	stmt := t.Dialect.Rebind(fmt.Sprintf(`UPDATE %s
		SET success = ?, execution_time = ?
		WHERE version = ?`, t.ident()))

	res, err := d.ExecContext(ctx, stmt, true, execTime.Nanoseconds(), version)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed getting affected rows: %w", err)
	}
	if n == 0 {
		return types.NoResultError{ModelName: "migration", ID: fmt.Sprintf("version %d", version)}
	}
	if n > 1 {
		return types.IntegrityError{Msg: fmt.Sprintf("updated %d migrations", n)}
	}

	return nil
}

// Applied returns the ledger rows in ascending version order. An optional
// filter can be passed to limit the results.
func (t MigrationTable) Applied(
	ctx context.Context, d types.Querier, filter *types.Filter,
) (migrations []*AppliedMigration, rerr error) {
	query := `SELECT
			version, description, installed_on, success, checksum, execution_time
		FROM %s WHERE %s
		ORDER BY version ASC`

	where := "1=1"
	args := []any{}
	if filter != nil {
		where = filter.Where
		args = filter.Args
	}

	query = t.Dialect.Rebind(fmt.Sprintf(query, t.ident(), where))
	if filter != nil && filter.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, filter.Limit)
	}

	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.LoadError{ModelName: "migrations", Err: err}
	}
	defer func() {
		if err = rows.Close(); err != nil {
			rerr = fmt.Errorf("failed closing migrations rows: %w", err)
		}
	}()

	migrations = make([]*AppliedMigration, 0)
	for rows.Next() {
		var (
			m        AppliedMigration
			execTime int64
		)
		err = rows.Scan(&m.Version, &m.Description, &m.InstalledOn, &m.Success,
			&m.Checksum, &execTime)
		if err != nil {
			return nil, types.ScanError{ModelName: "migration", Err: err}
		}
		m.ExecutionTime = time.Duration(execTime)
		migrations = append(migrations, &m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating over migrations rows: %w", err)
	}

	return migrations, nil
}

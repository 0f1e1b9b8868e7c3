package migrator

import (
	"encoding/hex"
	"fmt"
)

// SourceLoadError is returned when a migrations directory can't be read or
// contains a file that isn't a valid migration.
type SourceLoadError struct {
	Dir string
	// Table is the name of the ledger table, used as a hint in the message.
	Table string
	Err   error
}

func (e *SourceLoadError) Error() string {
	return fmt.Sprintf("failed loading migrations from '%s': %s; "+
		"migration files must be named <VERSION>_<DESCRIPTION>.sql, and applied "+
		"versions are tracked in the '%s' table", e.Dir, e.Err, e.Table)
}

func (e *SourceLoadError) Unwrap() error {
	return e.Err
}

// ExecuteError is returned by a Ledger when the SQL of a migration fails.
type ExecuteError struct {
	Version int64
	Err     error
}

func (e *ExecuteError) Error() string {
	return fmt.Sprintf("failed executing migration version %d: %s", e.Version, e.Err)
}

func (e *ExecuteError) Unwrap() error {
	return e.Err
}

// MigrationError is a rendered ExecuteError, with the migration that failed
// and a diagnostic of the failure.
type MigrationError struct {
	Migration  *Migration
	Database   string
	Diagnostic *Diagnostic
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("failed applying migration %s to %s: %s",
		e.Migration, e.Database, e.Diagnostic)
}

func (e *MigrationError) Unwrap() error {
	return e.Diagnostic
}

// MissingVersionError is returned when the ledger contains a version that
// isn't part of the migration set being applied.
type MissingVersionError struct {
	Version     int64
	Description string
}

func (e *MissingVersionError) Error() string {
	return fmt.Sprintf("migration %d (%s) was previously applied but is missing "+
		"from the resolved migrations", e.Version, e.Description)
}

// ChecksumMismatchError is returned when the SQL of an applied migration was
// changed after it was applied.
type ChecksumMismatchError struct {
	Migration *Migration
	Applied   []byte
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("migration %s was previously applied but has been modified "+
		"(applied checksum %s, current checksum %s)", e.Migration,
		shortHex(e.Applied), shortHex(e.Migration.Checksum))
}

// DirtyError is returned when a migration that runs outside of a transaction
// failed partway in a previous pass, and the database needs manual repair.
type DirtyError struct {
	Version     int64
	Description string
}

func (e *DirtyError) Error() string {
	return fmt.Sprintf("migration %d (%s) previously failed and may have been "+
		"partially applied; repair the database and remove the failed entry "+
		"from the ledger", e.Version, e.Description)
}

func shortHex(b []byte) string {
	if len(b) > 8 {
		b = b[:8]
	}
	return hex.EncodeToString(b)
}

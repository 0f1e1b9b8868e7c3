package migrator

import (
	"context"
	"fmt"

	"go.hackfix.me/strata/db/models"
)

// DefaultTable is the name of the ledger table.
const DefaultTable = "_migrations"

// Ledger records which migrations were applied to a database, and applies
// the ones that weren't.
type Ledger interface {
	// String returns an identifier of the database, used in messages.
	fmt.Stringer
	// Table returns the name of the table the ledger is stored in.
	Table() string
	// ApplyOutstanding applies the applicable migrations that aren't recorded
	// in the ledger, in ascending version order, and returns how many were
	// applied. If ignoreMissing is false, versions recorded in the ledger that
	// aren't part of migrations are an error. A failure in the SQL of a
	// migration is returned as an *ExecuteError.
	ApplyOutstanding(ctx context.Context, migrations []*Migration, ignoreMissing bool) (int, error)
	// Applied returns the ledger entries in ascending version order.
	Applied(ctx context.Context) ([]*models.AppliedMigration, error)
}

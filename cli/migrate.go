package cli

import (
	"errors"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
	"go.hackfix.me/strata/db/migrator"
)

// Migrate applies outstanding database migrations.
type Migrate struct{}

// Run the migrate command.
func (c *Migrate) Run(appCtx *actx.Context) error {
	runner, _, err := newMigrationRunner(appCtx)
	if err != nil {
		return err
	}

	summary, err := runner.Apply(appCtx.Ctx, migrationLayers(appCtx))
	if err != nil {
		return migrationError(err)
	}

	appCtx.Logger.Info("database migrations are up to date",
		"applied", summary.Applied(), "duration", summary.Duration)

	return nil
}

func migrationLayers(appCtx *actx.Context) []migrator.Layer {
	return migrator.Resolve(appCtx.Config.MigrationLayers())
}

func newMigrationRunner(appCtx *actx.Context) (*migrator.Runner, migrator.Ledger, error) {
	d, err := appCtx.OpenDB()
	if err != nil {
		return nil, nil, aerrors.NewRuntimeError("failed opening database", err,
			"set the database with --database-url, the STRATA_DATABASE_URL environment "+
				"variable, or database_url in the configuration file")
	}

	cfg := appCtx.Config
	ledger := migrator.NewSQLLedger(d,
		migrator.WithTable(cfg.Migrations.Table.V),
		migrator.WithLockTimeout(cfg.Migrations.LockTimeout.V),
		migrator.WithLedgerLogger(appCtx.Logger),
	)

	runner, err := migrator.NewRunner(ledger,
		migrator.WithFS(appCtx.FS),
		migrator.WithLogger(appCtx.Logger),
	)
	if err != nil {
		return nil, nil, err
	}

	return runner, ledger, nil
}

// migrationError adds a hint to errors the user can act on.
func migrationError(err error) error {
	var (
		migErr      *migrator.MigrationError
		dirtyErr    *migrator.DirtyError
		checksumErr *migrator.ChecksumMismatchError
		missingErr  *migrator.MissingVersionError
		hint        string
	)
	switch {
	case errors.As(err, &migErr):
		hint = "fix the migration file and run again; migrations that were " +
			"applied before it won't be applied again"
	case errors.As(err, &dirtyErr):
		hint = "inspect the database, complete or undo the migration manually, " +
			"and delete its row from the migrations table"
	case errors.As(err, &checksumErr):
		hint = "applied migrations must not be modified; restore the original " +
			"file and add the change as a new migration"
	case errors.As(err, &missingErr):
		hint = "restore the migration file, or configure the directory it was " +
			"applied from with --extra-migrations-dir"
	default:
		return err
	}

	return aerrors.NewRuntimeError("", err, hint)
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
	"go.hackfix.me/strata/db/migrator"
)

// Status shows the state of database migrations.
type Status struct {
	Pending bool `help:"Only show migrations that weren't applied."`
}

// Run the status command.
func (c *Status) Run(appCtx *actx.Context) error {
	runner, _, err := newMigrationRunner(appCtx)
	if err != nil {
		return err
	}

	statuses, err := runner.Status(appCtx.Ctx, migrationLayers(appCtx))
	if err != nil {
		return err
	}

	header := []string{"Layer", "Version", "Kind", "Description", "Applied", "Checksum"}
	data := [][]string{}
	for _, ls := range statuses {
		switch {
		case !ls.Exists:
			data = append(data, []string{ls.Layer.Path, "-", "-", "(does not exist)", "-", "-"})
			continue
		case len(ls.Migrations) == 0:
			data = append(data, []string{ls.Layer.Path, "-", "-", "(empty)", "-", "-"})
			continue
		}

		for _, ms := range ls.Migrations {
			if c.Pending && (ms.Applied || !ms.Kind.Applicable()) {
				continue
			}
			data = append(data, []string{
				ls.Layer.Path,
				fmt.Sprintf("%04d", ms.Version),
				ms.Kind.String(),
				ms.Description,
				appliedState(ms),
				shortChecksum(ms.Checksum),
			})
		}
	}

	if err = renderTable(header, data, appCtx.Stdout); err != nil {
		return aerrors.NewWithCause("failed rendering table", err, "rows", len(data))
	}

	return nil
}

func appliedState(ms migrator.MigrationStatus) string {
	switch {
	case !ms.Kind.Applicable():
		return "-"
	case ms.Modified:
		return "modified"
	default:
		return strconv.FormatBool(ms.Applied)
	}
}

func shortChecksum(sum []byte) string {
	if len(sum) > 6 {
		sum = sum[:6]
	}
	return base58.Encode(sum)
}

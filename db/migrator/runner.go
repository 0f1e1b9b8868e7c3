package migrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/nrednav/cuid2"

	"go.hackfix.me/strata/crypto"
)

// Runner applies the migrations of a list of layers to a Ledger.
type Runner struct {
	ledger   Ledger
	fs       vfs.FileSystem
	source   Source
	reporter Reporter
	logger   *slog.Logger
}

// NewRunner returns a new Runner that applies migrations to ledger. By default
// migrations are read from the OS filesystem, and failures are reported with
// a DiagnosticReporter.
func NewRunner(ledger Ledger, opts ...Option) (*Runner, error) {
	if ledger == nil {
		return nil, errors.New("ledger is nil")
	}

	r := &Runner{
		ledger:   ledger,
		reporter: DiagnosticReporter{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.fs == nil {
		r.fs = osfs.New()
	}
	if r.source == nil {
		r.source = NewDirSource(r.fs)
	}

	return r, nil
}

// Outcome is the result of processing a single layer.
type Outcome uint8

// Possible layer outcomes.
const (
	OutcomeMissing Outcome = iota + 1
	OutcomeEmpty
	OutcomeApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMissing:
		return "missing"
	case OutcomeEmpty:
		return "empty"
	case OutcomeApplied:
		return "applied"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// LayerResult is the outcome of a single layer of a pass.
type LayerResult struct {
	Layer   Layer
	Outcome Outcome
	// Found is the number of migrations loaded from the layer.
	Found int
	// Applied is the number of migrations that were outstanding and applied.
	Applied int
}

// Summary describes an apply pass.
type Summary struct {
	PassID   string
	Layers   []LayerResult
	Duration time.Duration
}

// Applied returns the number of migrations applied across all layers.
func (s *Summary) Applied() int {
	var n int
	for _, lr := range s.Layers {
		n += lr.Applied
	}
	return n
}

// Apply processes layers in order, and applies the outstanding migrations of
// each layer to the ledger. Layers that don't exist or are empty are skipped.
// Any failure aborts the pass, and the returned Summary includes only the
// layers processed until then.
//
// The ledger lock is taken separately for each layer, not for the whole pass.
// Layers applied concurrently by another process may be interleaved with ours.
func (r *Runner) Apply(ctx context.Context, layers []Layer) (*Summary, error) {
	summary := &Summary{PassID: cuid2.Generate()}
	logger := r.logger.With("pass_id", summary.PassID)
	start := time.Now()
	defer func() {
		summary.Duration = time.Since(start)
	}()

	var (
		ignoreMissing = hasExtras(layers)
		sole          = len(layers) == 1
	)
	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := r.applyLayer(ctx, logger, layer, ignoreMissing, sole)
		if err != nil {
			return summary, fmt.Errorf("failed applying database migrations from '%s': %w",
				layer.Path, err)
		}
		summary.Layers = append(summary.Layers, res)
	}

	logger.Debug("database migrations up to date", "applied", summary.Applied())

	return summary, nil
}

func (r *Runner) applyLayer(
	ctx context.Context, logger *slog.Logger, layer Layer, ignoreMissing, sole bool,
) (LayerResult, error) {
	res := LayerResult{Layer: layer}
	logger = logger.With("dir", layer.Path)

	exists, err := r.dirExists(layer.Path)
	if err != nil {
		return res, err
	}
	if !exists {
		logger.Info("not applying database migrations from directory because it does not exist")
		res.Outcome = OutcomeMissing
		return res, nil
	}

	migrations, err := r.source.Load(layer.Path)
	if err != nil {
		return res, &SourceLoadError{Dir: layer.Path, Table: r.ledger.Table(), Err: err}
	}
	res.Found = len(migrations)

	if len(migrations) == 0 {
		if sole {
			logger.Debug("no database migrations found; to have them applied at startup, " +
				"add files named <VERSION>_<DESCRIPTION>.sql to the directory")
		} else {
			logger.Info("skipping database migrations directory because it is empty")
		}
		res.Outcome = OutcomeEmpty
		return res, nil
	}

	names := make([]string, len(migrations))
	for i, m := range migrations {
		names[i] = m.String()
	}
	logger.Info("found database migrations", "count", len(migrations), "migrations", names)

	n, err := r.ledger.ApplyOutstanding(ctx, migrations, ignoreMissing)
	res.Applied = n
	if err != nil {
		var execErr *ExecuteError
		if errors.As(err, &execErr) {
			return res, r.reporter.Report(layer.Path, migrations, r.ledger.String(), execErr)
		}
		return res, err
	}

	res.Outcome = OutcomeApplied
	if n > 0 {
		logger.Info("applied database migrations", "count", n)
	}

	return res, nil
}

func (r *Runner) dirExists(path string) (bool, error) {
	fi, err := r.fs.Stat(path)
	if err != nil {
		if vfs.IsErrNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed checking migrations directory: %w", err)
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("'%s' is not a directory", path)
	}

	return true, nil
}

// LayerStatus is the state of the migrations of a single layer.
type LayerStatus struct {
	Layer      Layer
	Exists     bool
	Migrations []MigrationStatus
}

// MigrationStatus is a loaded migration and whether it's recorded in the
// ledger.
type MigrationStatus struct {
	*Migration
	Applied bool
	// Modified is true if the migration was applied with different SQL.
	Modified bool
}

// Status returns the migrations of every layer, and whether each one was
// applied. It doesn't modify the database.
func (r *Runner) Status(ctx context.Context, layers []Layer) ([]LayerStatus, error) {
	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed reading the migrations ledger of %s: %w", r.ledger, err)
	}

	appliedSums := make(map[int64][]byte, len(applied))
	for _, am := range applied {
		if am.Success {
			appliedSums[am.Version] = am.Checksum
		}
	}

	statuses := make([]LayerStatus, 0, len(layers))
	for _, layer := range layers {
		ls := LayerStatus{Layer: layer}
		ls.Exists, err = r.dirExists(layer.Path)
		if err != nil {
			return nil, err
		}
		if ls.Exists {
			migrations, err := r.source.Load(layer.Path)
			if err != nil {
				return nil, &SourceLoadError{Dir: layer.Path, Table: r.ledger.Table(), Err: err}
			}
			for _, m := range migrations {
				ms := MigrationStatus{Migration: m}
				if sum, ok := appliedSums[m.Version]; ok && m.Kind.Applicable() {
					ms.Applied = true
					ms.Modified = !crypto.EqualChecksums(sum, m.Checksum)
				}
				ls.Migrations = append(ls.Migrations, ms)
			}
		}
		statuses = append(statuses, ls)
	}

	return statuses, nil
}

package migrator

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/strata/db"
	"go.hackfix.me/strata/db/models"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	d, err := db.Open(t.Context(), "sqlite::memory:", timeNowFn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return d
}

// newTestFS returns a memory filesystem with the given files, keyed by path.
func newTestFS(t *testing.T, files map[string]string) vfs.FileSystem {
	t.Helper()

	fs := memoryfs.New()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, vfs.WriteFile(fs, path, []byte(content), 0o644))
	}

	return fs
}

// logBuffer collects log output for assertions.
type logBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// mockLedger records calls to ApplyOutstanding.
type mockLedger struct {
	mx      sync.Mutex
	calls   []mockCall
	err     error
	applied []*models.AppliedMigration
}

type mockCall struct {
	versions      []int64
	ignoreMissing bool
}

var _ Ledger = (*mockLedger)(nil)

func (l *mockLedger) String() string { return "mock database" }

func (l *mockLedger) Table() string { return DefaultTable }

func (l *mockLedger) ApplyOutstanding(
	_ context.Context, migrations []*Migration, ignoreMissing bool,
) (int, error) {
	l.mx.Lock()
	defer l.mx.Unlock()

	call := mockCall{ignoreMissing: ignoreMissing}
	for _, m := range migrations {
		call.versions = append(call.versions, m.Version)
	}
	l.calls = append(l.calls, call)
	if l.err != nil {
		return 0, l.err
	}

	return len(migrations), nil
}

func (l *mockLedger) Applied(context.Context) ([]*models.AppliedMigration, error) {
	return l.applied, nil
}

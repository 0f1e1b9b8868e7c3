package migrator

import (
	"cmp"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Source loads the migrations from a single directory.
type Source interface {
	Load(dir string) ([]*Migration, error)
}

// DirSource loads migrations from directories on a vfs filesystem.
type DirSource struct {
	fs vfs.FileSystem
}

var _ Source = (*DirSource)(nil)

// NewDirSource returns a new DirSource that reads from fs.
func NewDirSource(fs vfs.FileSystem) *DirSource {
	return &DirSource{fs: fs}
}

var filenameRx = regexp.MustCompile(`^(\d+)_(.+?)(\.up|\.down)?\.sql$`)

// Load reads all migration files in dir, and returns them sorted by
// ascending version, with an up migration placed before the down migration
// of the same version. Hidden files and subdirectories are skipped, and any
// other file that doesn't follow the `<VERSION>_<DESCRIPTION>.sql` naming is
// an error.
func (s *DirSource) Load(dir string) ([]*Migration, error) {
	entries, err := vfs.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed reading directory: %w", err)
	}

	var (
		migrations = make([]*Migration, 0, len(entries))
		seenApply  = map[int64]string{}
		seenDown   = map[int64]string{}
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		version, desc, kind, err := parseFilename(name)
		if err != nil {
			return nil, err
		}

		seen := seenApply
		if !kind.Applicable() {
			seen = seenDown
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in files '%s' and '%s'",
				version, prev, name)
		}
		seen[version] = name

		sql, err := vfs.ReadFile(s.fs, filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed reading migration file '%s': %w", name, err)
		}

		migrations = append(migrations, NewMigration(version, desc, kind, string(sql), dir))
	}

	for v, up := range seenApply {
		if _, ok := seenDown[v]; ok && !strings.HasSuffix(up, ".up.sql") {
			return nil, fmt.Errorf("down migration for version %d has no matching up migration; "+
				"rename '%s' to use the .up.sql suffix", v, up)
		}
	}
	for v, down := range seenDown {
		if _, ok := seenApply[v]; !ok {
			return nil, fmt.Errorf("down migration '%s' has no matching up migration", down)
		}
	}

	slices.SortStableFunc(migrations, func(a, b *Migration) int {
		return cmp.Or(cmp.Compare(a.Version, b.Version), cmp.Compare(a.Kind, b.Kind))
	})

	return migrations, nil
}

func parseFilename(name string) (version int64, desc string, kind Kind, err error) {
	m := filenameRx.FindStringSubmatch(name)
	if m == nil {
		return 0, "", 0, fmt.Errorf("invalid migration filename '%s'", name)
	}

	version, err = strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, "", 0, fmt.Errorf("invalid version in migration filename '%s': %w", name, err)
	}

	switch m[3] {
	case ".up":
		kind = KindReversibleUp
	case ".down":
		kind = KindReversibleDown
	default:
		kind = KindSimple
	}

	return version, m[2], kind, nil
}

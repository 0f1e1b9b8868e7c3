package migrator

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.hackfix.me/strata/crypto"
)

// Kind is the type of a migration, derived from its filename suffix.
type Kind uint8

// All supported migration kinds.
const (
	KindSimple Kind = iota
	KindReversibleUp
	KindReversibleDown
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "Simple"
	case KindReversibleUp:
		return "ReversibleUp"
	case KindReversibleDown:
		return "ReversibleDown"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// suffix returns the filename suffix used by migrations of this kind.
func (k Kind) suffix() string {
	switch k {
	case KindReversibleUp:
		return ".up.sql"
	case KindReversibleDown:
		return ".down.sql"
	default:
		return ".sql"
	}
}

// Applicable returns true if migrations of this kind are run when moving the
// database forward.
func (k Kind) Applicable() bool {
	return k != KindReversibleDown
}

// noTxDirective disables the transaction wrapping a migration when it's the
// first line of the file.
const noTxDirective = "-- no-transaction"

// Migration is a single versioned unit of schema change.
type Migration struct {
	Version     int64
	Description string
	Kind        Kind
	SQL         string
	Checksum    []byte
	// Dir is the directory the migration was loaded from.
	Dir string
	// NoTx is true if the migration must be run outside of a transaction.
	NoTx bool
}

// NewMigration creates a new Migration and computes its checksum.
func NewMigration(version int64, description string, kind Kind, sql, dir string) *Migration {
	return &Migration{
		Version:     version,
		Description: description,
		Kind:        kind,
		SQL:         sql,
		Checksum:    crypto.Checksum([]byte(sql)),
		Dir:         dir,
		NoTx:        strings.HasPrefix(strings.TrimLeft(sql, " \t\r\n"), noTxDirective),
	}
}

// String returns the display form of the migration, e.g.
// "[0002] add_users" or "[0003] (ReversibleUp) add_index".
func (m *Migration) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%04d]", m.Version)
	if m.Kind != KindSimple {
		fmt.Fprintf(&sb, " (%s)", m.Kind)
	}
	fmt.Fprintf(&sb, " %s", m.Description)
	return sb.String()
}

// Filename returns the canonical filename of the migration, with the version
// zero-padded to 4 digits.
func (m *Migration) Filename() string {
	return fmt.Sprintf("%04d_%s%s", m.Version, m.Description, m.Kind.suffix())
}

// Path returns the canonical path of the migration source file.
func (m *Migration) Path() string {
	return filepath.Join(m.Dir, m.Filename())
}

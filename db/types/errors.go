package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "modernc.org/sqlite/lib"
)

// pgUniqueViolation is the SQLSTATE code of a unique constraint violation.
const pgUniqueViolation = "23505"

// DuplicateError represents an error when attempting to create a record that
// already exists.
type DuplicateError struct {
	ModelName string
	ID        string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s already exists", e.ModelName, e.ID)
}

// IntegrityError represents a data integrity violation.
type IntegrityError struct {
	Msg string
}

// Error returns a string representation of the error.
func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity error: %s", e.Msg)
}

// LoadError represents an error that occurred while loading data from the database.
type LoadError struct {
	ModelName string
	Msg       string
	Err       error
}

// Error returns a string representation of the error.
func (e LoadError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("failed loading %s: %s", e.ModelName, msg)
}

// Unwrap returns the underlying error for error unwrapping.
func (e LoadError) Unwrap() error {
	return e.Err
}

// NoResultError represents an error when a database query returns no results.
type NoResultError struct {
	ModelName string
	ID        string
}

// Error returns a string representation of the error.
func (e NoResultError) Error() string {
	return fmt.Sprintf("%s with %s doesn't exist", e.ModelName, e.ID)
}

// ScanError represents an error that occurred while scanning database results
// into Go types.
type ScanError struct {
	ModelName string
	Err       error
}

// Error returns a string representation of the error.
func (e ScanError) Error() string {
	return fmt.Sprintf("failed scanning %s data: %s", e.ModelName, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e ScanError) Unwrap() error {
	return e.Err
}

// Err converts an expected error returned by SQLite or PostgreSQL into a
// friendly DB error of one of the types defined above.
func Err(modelName, id string, err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		if sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return &DuplicateError{ModelName: modelName, ID: id}
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &DuplicateError{ModelName: modelName, ID: id}
	}

	return err
}

// SQLite doesn't report error positions, but syntax errors quote the token
// the parser stopped at.
var sqliteNearRx = regexp.MustCompile(`near "((?:[^"]|"")*)": syntax error`)

// ErrorOffset returns the byte offset within query of the location err refers
// to, if the database reported one. PostgreSQL errors carry an exact
// position. For SQLite the offset of the token quoted in a syntax error is
// used when it occurs only once, or the end of the query if the input was
// incomplete.
func ErrorOffset(err error, query string) (int, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Position <= 0 {
			return 0, false
		}
		return runeToByteOffset(query, int(pgErr.Position)-1)
	}

	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return 0, false
	}

	msg := sqlErr.Error()
	if m := sqliteNearRx.FindStringSubmatch(msg); m != nil {
		token := strings.ReplaceAll(m[1], `""`, `"`)
		if token == "" {
			return 0, false
		}
		return tokenOffset(query, token)
	}
	if strings.Contains(msg, "incomplete input") {
		return len(strings.TrimRight(query, " \t\r\n")), true
	}

	return 0, false
}

// tokenOffset returns the offset of token in query if it can be located
// unambiguously: either it's the only occurrence that isn't part of a longer
// word, or the only occurrence at all. Tokens like ";" or ")" usually repeat
// across statements, and then no offset is returned.
func tokenOffset(query, token string) (int, bool) {
	var (
		all, words     int
		first, inWords = -1, -1
	)
	for from := 0; from < len(query); {
		idx := strings.Index(query[from:], token)
		if idx < 0 {
			break
		}
		idx += from
		all++
		if first < 0 {
			first = idx
		}
		end := idx + len(token)
		if (idx == 0 || !isWordByte(query[idx-1]) || !isWordByte(token[0])) &&
			(end == len(query) || !isWordByte(query[end]) || !isWordByte(token[len(token)-1])) {
			words++
			if inWords < 0 {
				inWords = idx
			}
		}
		from = idx + 1
	}

	switch {
	case words == 1:
		return inWords, true
	case words == 0 && all == 1:
		return first, true
	default:
		return 0, false
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func runeToByteOffset(s string, runeIdx int) (int, bool) {
	var n int
	for i := range s {
		if n == runeIdx {
			return i, true
		}
		n++
	}
	if n == runeIdx {
		return len(s), true
	}
	return 0, false
}

package migrator

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.hackfix.me/strata/db/types"
)

// Reporter renders a failed migration into a user-facing error.
type Reporter interface {
	Report(dir string, migrations []*Migration, database string, execErr *ExecuteError) error
}

// DiagnosticReporter reports failures as a *MigrationError with a Diagnostic
// pointing at the failed SQL.
type DiagnosticReporter struct{}

var _ Reporter = DiagnosticReporter{}

// Report finds the migration that failed among migrations, and returns a
// *MigrationError describing the failure.
func (r DiagnosticReporter) Report(
	dir string, migrations []*Migration, database string, execErr *ExecuteError,
) error {
	var failed *Migration
	for _, m := range migrations {
		if m.Version == execErr.Version && m.Kind.Applicable() {
			failed = m
			break
		}
	}
	if failed == nil {
		return fmt.Errorf("failed applying migration version %d to %s, "+
			"which wasn't loaded from '%s': %w", execErr.Version, database, dir, execErr.Err)
	}

	return &MigrationError{
		Migration:  failed,
		Database:   database,
		Diagnostic: r.Diagnose(failed.Path(), failed.SQL, execErr.Err),
	}
}

// Diagnose locates err within the SQL read from path.
func (r DiagnosticReporter) Diagnose(path, sql string, err error) *Diagnostic {
	d := &Diagnostic{Path: path, SQL: sql, Err: err}

	offset, ok := types.ErrorOffset(err, sql)
	if !ok {
		return d
	}

	d.Line = strings.Count(sql[:offset], "\n") + 1
	lineStart := strings.LastIndexByte(sql[:offset], '\n') + 1
	d.Column = utf8.RuneCountInString(sql[lineStart:offset]) + 1
	d.Statement = statementAt(sql, offset)

	return d
}

// Diagnostic describes where a migration failed.
type Diagnostic struct {
	Path string
	SQL  string
	Err  error
	// Line and Column are 1-based, and zero if the database didn't report
	// enough to locate the error.
	Line      int
	Column    int
	Statement string
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(d.Err.Error())

	fmt.Fprintf(&sb, "\n  --> %s", d.Path)
	if d.Line > 0 {
		fmt.Fprintf(&sb, ":%d:%d", d.Line, d.Column)
		d.writeExcerpt(&sb)
	}

	if d.Statement != "" && d.Statement != strings.TrimSpace(d.SQL) {
		sb.WriteString("\nin statement:\n")
		for _, line := range strings.Split(d.Statement, "\n") {
			fmt.Fprintf(&sb, "    %s\n", line)
		}
	} else {
		sb.WriteByte('\n')
	}

	sb.WriteString("migration SQL:\n")
	sb.WriteString(d.SQL)

	return sb.String()
}

func (d *Diagnostic) Unwrap() error {
	return d.Err
}

func (d *Diagnostic) writeExcerpt(sb *strings.Builder) {
	lines := strings.Split(d.SQL, "\n")
	if d.Line > len(lines) {
		return
	}
	line := strings.TrimRight(lines[d.Line-1], "\r")

	num := strconv.Itoa(d.Line)
	pad := strings.Repeat(" ", len(num))
	fmt.Fprintf(sb, "\n %s |\n %s | %s\n %s | %s^", pad, num, line, pad,
		strings.Repeat(" ", d.Column-1))
}

// statementAt returns the statement of sql that contains offset. Statements
// are split on semicolons outside of quotes and comments.
func statementAt(sql string, offset int) string {
	var (
		start                 int
		inSingle, inDouble    bool
		inLineCmt, inBlockCmt bool
	)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case inLineCmt:
			inLineCmt = c != '\n'
		case inBlockCmt:
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				inBlockCmt = false
				i++
			}
		case inSingle:
			inSingle = c != '\''
		case inDouble:
			inDouble = c != '"'
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			inLineCmt = true
			i++
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			inBlockCmt = true
			i++
		case c == ';':
			if offset <= i {
				return strings.TrimSpace(sql[start : i+1])
			}
			start = i + 1
		}
	}

	return strings.TrimSpace(sql[start:])
}

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		query     string
		expOffset int
		expOK     bool
	}{
		{
			name:      "ok/postgres",
			err:       &pgconn.PgError{Position: 8},
			query:     "SELECT FROM",
			expOffset: 7, expOK: true,
		},
		{
			name:      "ok/postgres_multibyte",
			err:       fmt.Errorf("wrapped: %w", &pgconn.PgError{Position: 12}),
			query:     "SELECT 'ü', x FROM",
			expOffset: 12, expOK: true,
		},
		{
			name:  "ok/postgres_no_position",
			err:   &pgconn.PgError{},
			query: "SELECT",
		},
		{
			name:  "ok/postgres_out_of_range",
			err:   &pgconn.PgError{Position: 100},
			query: "SELECT",
		},
		{
			name:  "ok/other",
			err:   errors.New("near \"x\": syntax error"),
			query: "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			offset, ok := ErrorOffset(tt.err, tt.query)
			assert.Equal(t, tt.expOK, ok)
			assert.Equal(t, tt.expOffset, offset)
		})
	}
}

func TestTokenOffset(t *testing.T) {
	t.Parallel()

	q := "CREATE TABLE a (id INT);\nCREATE TABL b (id INT);"

	tests := []struct {
		name      string
		query     string
		token     string
		expOffset int
		expOK     bool
	}{
		{name: "ok/whole_word", query: q, token: "TABL", expOffset: 32, expOK: true},
		{name: "ok/single_partial", query: "TABLES", token: "TABL", expOffset: 0, expOK: true},
		{name: "ok/unique_punctuation", query: "SELECT a, b FROM t", token: ",", expOffset: 8, expOK: true},
		{name: "err/repeated_punctuation", query: q, token: ")"},
		{
			name:  "err/repeated_semicolon",
			query: "CREATE TABLE t (c INTEGER);\nINSERT INTO t VALUES (1);\nSELECT * FROM t WHERE;",
			token: ";",
		},
		{name: "err/repeated_word", query: "SELECT x;\nSELECT x FROM", token: "x"},
		{name: "err/repeated_partial", query: "TABLES TABLET", token: "TABL"},
		{name: "err/not_found", query: q, token: "DROP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			offset, ok := tokenOffset(tt.query, tt.token)
			assert.Equal(t, tt.expOK, ok)
			assert.Equal(t, tt.expOffset, offset)
		})
	}
}

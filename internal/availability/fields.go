package availability

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the minimal pgx surface the availability reads need.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FieldMapping names the two columns holding a record's start/end instants.
type FieldMapping struct {
	StartField string
	EndField   string
}

// ErrUnresolvedSchema is returned when no candidate column pair exists on the
// table. Callers must then supply explicit start/end field names.
var ErrUnresolvedSchema = errors.New("availability: could not resolve start/end time columns, supply start_field and end_field")

// Candidate column pairs probed in order against the target table.
var fieldCandidates = []FieldMapping{
	{StartField: "start_time", EndField: "end_time"},
	{StartField: "start_at", EndField: "end_at"},
	{StartField: "starts_at", EndField: "ends_at"},
	{StartField: "start", EndField: "end"},
	{StartField: "begin_time", EndField: "finish_time"},
	{StartField: "scheduled_start", EndField: "scheduled_end"},
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validIdent(s string) bool {
	return identPattern.MatchString(s)
}

// quoteIdent double-quotes a validated identifier so reserved words like
// "end" survive the parser. Callers must have checked validIdent first,
// which rules out embedded quotes.
func quoteIdent(s string) string {
	return `"` + s + `"`
}

// ResolveFields finds the start/end columns of table. Explicitly supplied
// field names are returned unchecked; the caller asserts they exist.
// Otherwise each candidate pair is probed with a zero-row query until one
// does not raise an undefined-column error.
func ResolveFields(ctx context.Context, db Querier, table, startField, endField string) (FieldMapping, error) {
	if !validIdent(table) {
		return FieldMapping{}, fmt.Errorf("availability: invalid table name %q", table)
	}
	if startField != "" && endField != "" {
		if !validIdent(startField) || !validIdent(endField) {
			return FieldMapping{}, fmt.Errorf("availability: invalid field name %q/%q", startField, endField)
		}
		return FieldMapping{StartField: startField, EndField: endField}, nil
	}

	for _, cand := range fieldCandidates {
		// Identifiers cannot be bound parameters; both sides are from the
		// fixed candidate list and the table name is validated above. Quoting
		// keeps the start/end pair from reading as reserved keywords.
		probe := fmt.Sprintf("SELECT %s, %s FROM %s LIMIT 0",
			quoteIdent(cand.StartField), quoteIdent(cand.EndField), quoteIdent(table))
		rows, err := db.Query(ctx, probe)
		if err == nil {
			rows.Close()
			return cand, nil
		}
		if isUndefinedColumn(err) {
			continue
		}
		return FieldMapping{}, fmt.Errorf("availability: probe %s/%s: %w", cand.StartField, cand.EndField, err)
	}
	return FieldMapping{}, ErrUnresolvedSchema
}

// isUndefinedColumn reports whether err is Postgres undefined_column (42703)
// or a driver error that reads like a missing column.
func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42703"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "column") || strings.Contains(msg, "does not exist")
}

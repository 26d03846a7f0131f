package postgres

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	insertColumns = regexp.MustCompile(`(?s)INSERT INTO \w+ \((.*?)\)\s*VALUES`)
	selectColumns = regexp.MustCompile(`(?s)SELECT\s+(.*?)\s+FROM`)
	placeholder   = regexp.MustCompile(`\$(\d+)`)
)

// columnList returns the comma separated identifiers captured by re.
func columnList(re *regexp.Regexp, sql string) []string {
	m := re.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	var cols []string
	for _, c := range strings.Split(m[1], ",") {
		cols = append(cols, strings.TrimSpace(c))
	}
	return cols
}

// maxPlaceholder returns the highest $n referenced by sql.
func maxPlaceholder(sql string) int {
	n := 0
	for _, m := range placeholder.FindAllStringSubmatch(sql, -1) {
		i, _ := strconv.Atoi(m[1])
		n = max(n, i)
	}
	return n
}

type dbCall struct {
	sql  string
	args []any
}

// fakeDB records statements and answers reads from rows keyed by column
// name, ordered the way the statement's SELECT list orders them.
type fakeDB struct {
	calls    []dbCall
	execErr  error
	queryErr error
	rowErr   error
	row      map[string]any
	rows     []map[string]any
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, dbCall{sql: sql, args: args})
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.calls = append(db.calls, dbCall{sql: sql, args: args})
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return &fakeRows{cols: db.columnsFor(sql), values: db.rows, idx: -1}, nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.calls = append(db.calls, dbCall{sql: sql, args: args})
	return fakeRow{cols: db.columnsFor(sql), values: db.row, err: db.rowErr}
}

// columnsFor is the SELECT list of a query, or the RETURNING column of an
// insert.
func (db *fakeDB) columnsFor(sql string) []string {
	if i := strings.Index(sql, "RETURNING "); i >= 0 {
		return []string{strings.TrimSuffix(strings.TrimSpace(sql[i+len("RETURNING "):]), ";")}
	}
	return columnList(selectColumns, sql)
}

// last returns the most recent statement.
func (db *fakeDB) last() dbCall {
	if len(db.calls) == 0 {
		return dbCall{}
	}
	return db.calls[len(db.calls)-1]
}

// insertArgs pairs each column of an INSERT with the argument bound to it.
func insertArgs(c dbCall) map[string]any {
	out := map[string]any{}
	for i, col := range columnList(insertColumns, c.sql) {
		if i < len(c.args) {
			out[col] = c.args[i]
		}
	}
	return out
}

type fakeRow struct {
	cols   []string
	values map[string]any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.cols, r.values, dest)
}

type fakeRows struct {
	pgx.Rows
	cols   []string
	values []map[string]any
	idx    int
	closed bool
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.values)
}

func (r *fakeRows) Scan(dest ...any) error { return scanInto(r.cols, r.values[r.idx], dest) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 { r.closed = true }

// scanInto copies values into dest in column order, refusing mismatched
// counts or types the way pgx would.
func scanInto(cols []string, values map[string]any, dest []any) error {
	if len(cols) != len(dest) {
		return fmt.Errorf("scan: %d columns into %d targets", len(cols), len(dest))
	}
	for i, col := range cols {
		v, ok := values[col]
		if !ok {
			return fmt.Errorf("scan: no value for column %s", col)
		}
		target := reflect.ValueOf(dest[i]).Elem()
		src := reflect.ValueOf(v)
		if !src.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %s is %s, target is %s", col, src.Type(), target.Type())
		}
		target.Set(src)
	}
	return nil
}

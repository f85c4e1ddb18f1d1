// Package sqldb adapts database/sql drivers (pgx, duckdb, sqlite) to the
// conn.Connection contract.
package sqldb

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sqlpane/sqlpane/internal/conn"
)

type Conn struct {
	db     *sql.DB
	driver Driver
}

func New(db *sql.DB, driver Driver) *Conn {
	return &Conn{db: db, driver: driver}
}

func (c *Conn) Driver() Driver {
	return c.driver
}

// Query sends sqlText as-is. Driver errors are returned unwrapped so their
// message reaches the caller untouched.
func (c *Conn) Query(ctx context.Context, sqlText string) (conn.Rows, error) {
	rows, err := c.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	columns := make([]conn.Column, len(columnTypes))
	for i, ct := range columnTypes {
		typeName := ct.DatabaseTypeName()
		if c.driver == DriverSQLite {
			typeName = sqliteTypeName(typeName)
		}
		columns[i] = conn.Column{Name: ct.Name(), TypeName: typeName}
	}
	return &sqlRows{rows: rows, columns: columns}, nil
}

// sqliteTypeName maps a declared SQLite column type onto the decoder's
// vocabulary using SQLite's affinity rules. SQLite integers are always 64
// bit. Expressions and NUMERIC columns carry no usable declaration and map
// to "", which makes the decoder name each value by what it holds.
func sqliteTypeName(declared string) string {
	name := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	switch name {
	case "":
		return ""
	case "BOOL", "BOOLEAN":
		return "BOOL"
	case "DATE":
		return "DATE"
	case "DATETIME", "TIMESTAMP":
		return "TIMESTAMP"
	case "JSON":
		return "JSON"
	}
	switch {
	case strings.Contains(name, "INT"):
		return "INT8"
	case strings.Contains(name, "CHAR"), strings.Contains(name, "CLOB"), strings.Contains(name, "TEXT"):
		return "TEXT"
	case strings.Contains(name, "BLOB"):
		return "BLOB"
	case strings.Contains(name, "REAL"), strings.Contains(name, "FLOA"), strings.Contains(name, "DOUB"):
		return "FLOAT8"
	default:
		return ""
	}
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Conn) Close() error {
	return c.db.Close()
}

type sqlRows struct {
	rows    *sql.Rows
	columns []conn.Column
	current sqlRow
	err     error
}

func (r *sqlRows) Columns() []conn.Column {
	return r.columns
}

// Next scans every column into a capturing scanner that never rejects a
// value, so typed conversion happens per cell later.
func (r *sqlRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	cells := make([]rawCell, len(r.columns))
	targets := make([]any, len(r.columns))
	for i := range cells {
		targets[i] = &cells[i]
	}
	if err := r.rows.Scan(targets...); err != nil {
		r.err = err
		return false
	}
	r.current = sqlRow{cells: cells}
	return true
}

func (r *sqlRows) Row() conn.Row {
	return r.current
}

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

type sqlRow struct {
	cells []rawCell
}

func (r sqlRow) Cell(i int) conn.Cell {
	if i < 0 || i >= len(r.cells) {
		return rawCell{}
	}
	return r.cells[i]
}

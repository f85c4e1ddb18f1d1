// Package conn describes the database connection the executor drives. Rows
// expose, per column, a name, the driver's type identifier and a Cell with
// typed accessors. A failed accessor returns an error for that cell only.
package conn

import (
	"context"
	"errors"
	"time"
)

// ErrNull is returned by typed accessors when the cell holds SQL NULL.
var ErrNull = errors.New("cell is null")

type Column struct {
	Name     string
	TypeName string
}

type Cell interface {
	IsNull() bool
	Int16() (int16, error)
	Int32() (int32, error)
	Int64() (int64, error)
	Float32() (float32, error)
	Float64() (float64, error)
	Money() (float64, error)
	String() (string, error)
	Bool() (bool, error)
	Bytes() ([]byte, error)
	Time() (time.Time, error)
	Interval() (any, error)
	JSON() ([]byte, error)
	StringArray() ([]string, error)
}

// TypeNamer is implemented by cells that can name the type of the value
// they hold. Decoding falls back to it when the driver reports no type for
// a column, as SQLite does for expressions.
type TypeNamer interface {
	TypeName() string
}

type Row interface {
	Cell(i int) Cell
}

type Rows interface {
	Columns() []Column
	Next() bool
	Row() Row
	Err() error
	Close() error
}

type Connection interface {
	Query(ctx context.Context, sql string) (Rows, error)
	Close() error
}

// Catalog lists what a connection can browse.
type Catalog interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context) ([]string, error)
}

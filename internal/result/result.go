// Package result holds the column-major shape of a decoded query result and
// the fixed-size paging over it.
package result

import "github.com/sqlpane/sqlpane/internal/value"

type Column struct {
	Name   string
	Values []value.Value
}

// Result maps column names to value sequences in first-seen order. All
// sequences have the same length. A result built from zero rows has no
// columns at all.
type Result struct {
	columns []Column
}

// New assembles a result from already-ordered columns. Duplicate names keep
// the first occurrence.
func New(columns ...Column) Result {
	b := NewBuilder()
	for _, column := range columns {
		b.ensure(column.Name)
		idx := b.index[column.Name]
		b.columns[idx].Values = append(b.columns[idx].Values, column.Values...)
	}
	return b.Result()
}

func (r Result) Columns() []Column {
	return r.columns
}

func (r Result) Names() []string {
	names := make([]string, len(r.columns))
	for i, column := range r.columns {
		names[i] = column.Name
	}
	return names
}

func (r Result) Column(name string) ([]value.Value, bool) {
	for _, column := range r.columns {
		if column.Name == name {
			return column.Values, true
		}
	}
	return nil, false
}

func (r Result) Len() int {
	return len(r.columns)
}

func (r Result) IsEmpty() bool {
	return len(r.columns) == 0
}

// RowCount is the length of the first column, or 0 without columns.
func (r Result) RowCount() int {
	if len(r.columns) == 0 {
		return 0
	}
	return len(r.columns[0].Values)
}

// Row returns the canonical string forms of row i across all columns. Columns
// shorter than i contribute an empty string.
func (r Result) Row(i int) []string {
	row := make([]string, len(r.columns))
	for c, column := range r.columns {
		if i >= 0 && i < len(column.Values) {
			row[c] = column.Values[i].String()
		}
	}
	return row
}

func (r Result) Equal(other Result) bool {
	if len(r.columns) != len(other.columns) {
		return false
	}
	for i := range r.columns {
		a, b := r.columns[i], other.columns[i]
		if a.Name != b.Name || len(a.Values) != len(b.Values) {
			return false
		}
		for j := range a.Values {
			if !a.Values[j].Equal(b.Values[j]) {
				return false
			}
		}
	}
	return true
}

// Builder accumulates cells column by column while rows are scanned.
type Builder struct {
	columns []Column
	index   map[string]int
}

func NewBuilder() *Builder {
	return &Builder{index: map[string]int{}}
}

func (b *Builder) Append(column string, v value.Value) {
	idx := b.ensure(column)
	b.columns[idx].Values = append(b.columns[idx].Values, v)
}

func (b *Builder) ensure(column string) int {
	if idx, ok := b.index[column]; ok {
		return idx
	}
	b.columns = append(b.columns, Column{Name: column, Values: []value.Value{}})
	idx := len(b.columns) - 1
	b.index[column] = idx
	return idx
}

// Result hands out the assembled columns. The builder must not be used
// afterwards.
func (b *Builder) Result() Result {
	return Result{columns: b.columns}
}

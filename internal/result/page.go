package result

import "github.com/sqlpane/sqlpane/internal/value"

// PageSize is the fixed number of rows per page.
const PageSize = 250

func PageCount(totalRows int) int {
	if totalRows <= 0 {
		return 0
	}
	return (totalRows + PageSize - 1) / PageSize
}

// Bounds returns the [start, end) row range of page within totalRows rows.
// The last page ends at totalRows; any other page spans PageSize rows.
func Bounds(totalRows, page int) (int, int) {
	start := page * PageSize
	end := start + PageSize
	if page == PageCount(totalRows)-1 {
		end = totalRows
	}
	return start, end
}

// Slice computes the page view of r. It keeps every column of r, each cut to
// the page's row range; a column that ends before the page starts yields an
// empty sequence. r is never modified.
func Slice(r Result, page int) Result {
	total := r.RowCount()
	start, end := Bounds(total, page)

	columns := make([]Column, len(r.columns))
	for i, column := range r.columns {
		columns[i] = Column{Name: column.Name, Values: window(column.Values, start, end)}
	}
	return Result{columns: columns}
}

func window(values []value.Value, start, end int) []value.Value {
	if start < 0 || start >= len(values) {
		return []value.Value{}
	}
	if end > len(values) {
		end = len(values)
	}
	if end < start {
		end = start
	}
	return values[start:end:end]
}

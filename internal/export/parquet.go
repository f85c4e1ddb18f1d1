package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlpane/sqlpane/internal/result"
)

// parquetCell is one cell of a result in long form, so arbitrary column sets
// share one schema.
type parquetCell struct {
	RowIndex    int64  `parquet:"row_index"`
	ColumnIndex int32  `parquet:"column_index"`
	ColumnName  string `parquet:"column_name"`
	Value       string `parquet:"value"`
	IsNull      bool   `parquet:"is_null"`
}

type ParquetExporter struct{}

func (ParquetExporter) ContentType() string { return "application/vnd.apache.parquet" }
func (ParquetExporter) Extension() string   { return string(FormatParquet) }

func (ParquetExporter) Export(w io.Writer, r result.Result) error {
	writer := parquet.NewGenericWriter[parquetCell](w)
	columns := r.Columns()
	rows := r.RowCount()

	batch := make([]parquetCell, 0, result.PageSize*max(len(columns), 1))
	for start := 0; start < rows; start += result.PageSize {
		end := min(start+result.PageSize, rows)
		batch = batch[:0]
		for i := start; i < end; i++ {
			for c, column := range columns {
				cell := parquetCell{RowIndex: int64(i), ColumnIndex: int32(c), ColumnName: column.Name}
				if i < len(column.Values) {
					v := column.Values[i]
					cell.Value = v.String()
					cell.IsNull = v.IsNull()
				} else {
					cell.IsNull = true
				}
				batch = append(batch, cell)
			}
		}
		if _, err := writer.Write(batch); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

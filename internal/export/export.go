// Package export writes decoded results as tabular files: a header of column
// names in result order, then one record per row of canonical value strings.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/sqlpane/sqlpane/internal/result"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

type Exporter interface {
	Export(w io.Writer, r result.Result) error
	ContentType() string
	Extension() string
}

func ForFormat(format Format) (Exporter, error) {
	switch format {
	case FormatCSV:
		return CSVExporter{}, nil
	case FormatParquet:
		return ParquetExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// Records yields the header followed by every row of r.
func Records(r result.Result) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		if !yield(r.Names()) {
			return
		}
		rows := r.RowCount()
		for i := 0; i < rows; i++ {
			if !yield(r.Row(i)) {
				return
			}
		}
	}
}

type CSVExporter struct{}

func (CSVExporter) ContentType() string { return "text/csv" }
func (CSVExporter) Extension() string   { return string(FormatCSV) }

func (CSVExporter) Export(w io.Writer, r result.Result) error {
	writer := csv.NewWriter(w)
	for record := range Records(r) {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Package query sends SQL text to a connection and decodes every row into a
// columnar result.
package query

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sqlpane/sqlpane/internal/conn"
	"github.com/sqlpane/sqlpane/internal/decode"
	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/result"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type Execution struct {
	Result  result.Result
	Elapsed time.Duration
}

// ElapsedMillis is the elapsed wall-clock time truncated to whole milliseconds.
func (e Execution) ElapsedMillis() int64 {
	return e.Elapsed.Milliseconds()
}

// Runner is what the execution dispatcher needs from an executor.
type Runner interface {
	Execute(ctx context.Context, sqlText string) (Execution, error)
}

type Executor struct {
	Conn   conn.Connection
	Logger *slog.Logger
	now    func() time.Time
}

func NewExecutor(connection conn.Connection, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{Conn: connection, Logger: logger, now: time.Now}
}

// Execute runs sqlText verbatim. Errors from the driver are returned as-is so
// their text reaches the user unchanged.
func (e *Executor) Execute(ctx context.Context, sqlText string) (Execution, error) {
	now := e.now
	if now == nil {
		now = time.Now
	}
	start := now()

	execution, err := e.run(ctx, sqlText)
	execution.Elapsed = now().Sub(start)

	if err != nil {
		observability.ObserveQueryExecution(OutcomeError, 0, execution.Elapsed)
		e.logger().Debug("query failed", slog.Int64("elapsed_ms", execution.ElapsedMillis()), slog.String("error", err.Error()))
		return Execution{Elapsed: execution.Elapsed}, err
	}

	rows := execution.Result.RowCount()
	observability.ObserveQueryExecution(OutcomeSuccess, rows, execution.Elapsed)
	e.logger().Debug("query executed",
		slog.Int("rows", rows),
		slog.Int("columns", execution.Result.Len()),
		slog.Int64("elapsed_ms", execution.ElapsedMillis()),
	)
	return execution, nil
}

func (e *Executor) run(ctx context.Context, sqlText string) (Execution, error) {
	rows, err := e.Conn.Query(ctx, sqlText)
	if err != nil {
		return Execution{}, err
	}

	columns := rows.Columns()
	builder := result.NewBuilder()
	for rows.Next() {
		row := rows.Row()
		for i, column := range columns {
			builder.Append(column.Name, decode.Decode(column.TypeName, row.Cell(i)))
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return Execution{}, err
	}
	if err := rows.Close(); err != nil {
		return Execution{}, err
	}
	return Execution{Result: builder.Result()}, nil
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

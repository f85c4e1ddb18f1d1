package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/query"
)

var ErrBusy = errors.New("execution pool is saturated")

const releaseTimeout = 3 * time.Second

// Dispatcher runs executions in the background on a bounded pool.
type Dispatcher struct {
	pool   *ants.Pool
	runner query.Runner
	logger *slog.Logger
}

func NewDispatcher(workers int, runner query.Runner, logger *slog.Logger) (*Dispatcher, error) {
	if runner == nil {
		return nil, fmt.Errorf("query runner is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			logger.Error("execution worker panic", slog.Any("panic", v))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create execution pool: %w", err)
	}
	return &Dispatcher{pool: pool, runner: runner, logger: logger}, nil
}

// Dispatch starts a new generation on cell and returns without waiting for
// the query. ctx is passed to the driver as-is.
func (d *Dispatcher) Dispatch(ctx context.Context, cell *Cell, sqlText string) (Token, error) {
	token := cell.Begin()
	observability.ExecutionStarted()
	err := d.pool.Submit(func() {
		defer observability.ExecutionFinished()
		d.run(ctx, cell, token, sqlText)
	})
	if err != nil {
		observability.ExecutionFinished()
		if errors.Is(err, ants.ErrPoolOverload) {
			observability.ExecutionRejected()
			err = ErrBusy
		}
		err = fmt.Errorf("dispatch execution: %w", err)
		cell.Fail(token, err.Error())
		return token, err
	}
	return token, nil
}

func (d *Dispatcher) run(ctx context.Context, cell *Cell, token Token, sqlText string) {
	logger := observability.ContextLogger(ctx, d.logger)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("execution panicked", slog.Uint64("token", uint64(token)), slog.Any("panic", r))
			cell.Fail(token, fmt.Sprintf("execution panicked: %v", r))
		}
	}()

	execution, err := d.runner.Execute(ctx, sqlText)
	if err != nil {
		if !cell.Fail(token, err.Error()) {
			logger.Debug("discarded stale execution error", slog.Uint64("token", uint64(token)))
		}
		return
	}
	if !cell.Complete(token, execution) {
		logger.Debug("discarded stale execution result", slog.Uint64("token", uint64(token)))
	}
}

func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

func (d *Dispatcher) Close() error {
	return d.pool.ReleaseTimeout(releaseTimeout)
}

// Package observability carries the logging and Prometheus plumbing shared
// by the API server and the terminal client.
package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/sqlpane/sqlpane/internal/config"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	executionIDKey
)

// NewLogger builds the process logger. Every record carries the service name
// and profile.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(writer, opts)
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

// ContextLogger returns base annotated with whatever trace and execution ids
// ctx carries. A nil base logs nowhere.
func ContextLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var attrs []any
	if id := TraceIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("trace_id", id))
	}
	if id := ExecutionIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("execution_id", id))
	}
	if len(attrs) == 0 {
		return base
	}
	return base.With(attrs...)
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(traceIDKey).(string)
	return value
}

func ContextWithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, executionIDKey, executionID)
}

func ExecutionIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(executionIDKey).(string)
	return value
}

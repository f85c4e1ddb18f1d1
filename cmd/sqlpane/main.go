package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlpane/sqlpane/internal/cli/sqlpane"
	"github.com/sqlpane/sqlpane/internal/config"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlpane")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}
	if _, ok := os.LookupEnv("SQLPANE_LOG_LEVEL"); !ok {
		cfg.Observability.LogLevel = slog.LevelWarn
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := sqlpane.Run(ctx, os.Args[1:], sqlpane.Options{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	stop()
	os.Exit(code)
}

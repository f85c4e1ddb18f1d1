package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlpane/sqlpane/internal/api"
	"github.com/sqlpane/sqlpane/internal/assist"
	"github.com/sqlpane/sqlpane/internal/auth"
	"github.com/sqlpane/sqlpane/internal/config"
	"github.com/sqlpane/sqlpane/internal/conn/sqldb"
	"github.com/sqlpane/sqlpane/internal/execution"
	"github.com/sqlpane/sqlpane/internal/export"
	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/query"
	s3store "github.com/sqlpane/sqlpane/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlpane-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	driver, err := sqldb.ParseDriver(cfg.DB.Driver)
	if err != nil {
		logger.Error("invalid database driver", slog.Any("error", err))
		os.Exit(1)
	}
	connection, err := sqldb.Open(context.Background(), sqldb.Config{
		Driver: driver,
		DSN: sqldb.ResolveDSN(driver, cfg.DB.DSN, sqldb.Server{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Database: cfg.DB.Name,
		}),
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = connection.Close() }()

	dispatcher, err := execution.NewDispatcher(cfg.Execution.Workers, query.NewExecutor(connection, logger), logger)
	if err != nil {
		logger.Error("failed to start execution pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = dispatcher.Close() }()

	deps := api.Dependencies{
		Logger:     logger,
		Executions: execution.NewRegistry(cfg.Execution.MaxRetained),
		Dispatcher: dispatcher,
		Catalog:    connection,
		Readiness: api.CombineReadinessChecks(
			api.PingCheck(connection),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}

	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(context.Background(), cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Exports = export.ObjectStoreSink{Store: objectStore, LinkExpiry: cfg.ObjectStore.LinkExpiry}
		deps.ExportStore = objectStore
	}

	if cfg.AI.Enabled {
		assistant, err := assist.New(assist.OptionsFromConfig(cfg.AI))
		if err != nil {
			logger.Error("failed to initialize sql assistant", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Assistant = assistant
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("driver", string(driver)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlpane/sqlpane/internal/assist"
	"github.com/sqlpane/sqlpane/internal/config"
	"github.com/sqlpane/sqlpane/internal/conn"
	"github.com/sqlpane/sqlpane/internal/execution"
	"github.com/sqlpane/sqlpane/internal/export"
	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/result"
	"github.com/sqlpane/sqlpane/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

type Dispatcher interface {
	Dispatch(ctx context.Context, cell *execution.Cell, sqlText string) (execution.Token, error)
}

type ExportUploader interface {
	Write(ctx context.Context, executionID string, exporter export.Exporter, r result.Result) (storage.ObjectInfo, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Executions        *execution.Registry
	Dispatcher        Dispatcher
	Catalog           conn.Catalog
	Exports           ExportUploader
	ExportStore       storage.ObjectStore
	Assistant         assist.Suggester
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := map[string]http.HandlerFunc{
		"POST /v1/executions": func(w http.ResponseWriter, r *http.Request) {
			handleCreateExecution(deps, w, r)
		},
		"GET /v1/executions/{id}": func(w http.ResponseWriter, r *http.Request) {
			handleGetExecution(deps, w, r)
		},
		"PUT /v1/executions/{id}/page": func(w http.ResponseWriter, r *http.Request) {
			handleSetPage(deps, w, r)
		},
		"POST /v1/executions/{id}/sql": func(w http.ResponseWriter, r *http.Request) {
			handleRedispatch(deps, w, r)
		},
		"DELETE /v1/executions/{id}": func(w http.ResponseWriter, r *http.Request) {
			handleDeleteExecution(deps, w, r)
		},
		"GET /v1/executions/{id}/export": func(w http.ResponseWriter, r *http.Request) {
			handleDownloadExport(deps, w, r)
		},
		"POST /v1/executions/{id}/export": func(w http.ResponseWriter, r *http.Request) {
			handleStoreExport(deps, w, r)
		},
		"GET /v1/exports/{key...}": func(w http.ResponseWriter, r *http.Request) {
			handleFetchStoredExport(deps, w, r)
		},
		"GET /v1/databases": func(w http.ResponseWriter, r *http.Request) {
			handleListDatabases(deps, w, r)
		},
		"GET /v1/tables": func(w http.ResponseWriter, r *http.Request) {
			handleListTables(deps, w, r)
		},
		"POST /v1/assist": func(w http.ResponseWriter, r *http.Request) {
			handleAssist(deps, w, r)
		},
	}

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}

	return chain(mux,
		observability.TraceMiddleware,
		observability.InstrumentMiddleware(deps.Logger),
	)
}

// PingCheck reports the connection as ready when it answers a ping.
func PingCheck(pinger interface{ Ping(ctx context.Context) error }) ReadinessCheck {
	return func(ctx context.Context) error {
		if pinger == nil {
			return errors.New("database connection is not configured")
		}
		return pinger.Ping(ctx)
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.ObjectStore.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

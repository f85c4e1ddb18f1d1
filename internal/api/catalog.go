package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sqlpane/sqlpane/internal/assist"
	"github.com/sqlpane/sqlpane/internal/auth"
)

type assistRequest struct {
	Prompt string `json:"prompt"`
}

func handleListDatabases(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	listCatalog(deps, w, r, "databases", func(ctx context.Context) ([]string, error) {
		return deps.Catalog.ListDatabases(ctx)
	})
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	listCatalog(deps, w, r, "tables", func(ctx context.Context) ([]string, error) {
		return deps.Catalog.ListTables(ctx)
	})
}

func listCatalog(deps Dependencies, w http.ResponseWriter, r *http.Request, field string, list func(context.Context) ([]string, error)) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CATALOG_NOT_CONFIGURED", "catalog is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleCatalogReader, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	names, err := list(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "CATALOG_FAILED", "failed to list "+field, true, map[string]any{"details": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{field: names})
}

func handleAssist(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSIST_NOT_CONFIGURED", "sql assistant is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	var req assistRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid assist request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return
	}

	var tables []string
	if deps.Catalog != nil {
		listed, err := deps.Catalog.ListTables(r.Context())
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.WarnContext(r.Context(), "assist table context unavailable", "error", err)
			}
		} else {
			tables = listed
		}
	}

	suggestion, err := deps.Assistant.Suggest(r.Context(), assist.Request{Prompt: req.Prompt, Tables: tables})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "ASSIST_FAILED", "failed to generate sql", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

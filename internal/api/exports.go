package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/sqlpane/sqlpane/internal/auth"
	"github.com/sqlpane/sqlpane/internal/storage"
)

// handleFetchStoredExport streams an export previously written to the object
// store, addressed by the key the store-export response returned.
func handleFetchStoredExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.ExportStore == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_STORE_NOT_CONFIGURED", "object store exports are not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	key := r.PathValue("key")
	info, err := deps.ExportStore.Stat(r.Context(), key)
	if err != nil {
		writeStoreError(w, r, key, err)
		return
	}
	body, err := deps.ExportStore.Get(r.Context(), key)
	if err != nil {
		writeStoreError(w, r, key, err)
		return
	}
	defer func() { _ = body.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, path.Base(key)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil && deps.Logger != nil {
		deps.Logger.ErrorContext(r.Context(), "stored export stream failed", "key", key, "error", err)
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, key string, err error) {
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "EXPORT_NOT_FOUND", "export was not found", false, map[string]any{"key": key})
		return
	}
	writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FETCH_FAILED", "failed to read stored export", true, map[string]any{"key": key, "details": err.Error()})
}

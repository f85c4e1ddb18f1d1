package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sqlpane/sqlpane/internal/auth"
	"github.com/sqlpane/sqlpane/internal/execution"
	"github.com/sqlpane/sqlpane/internal/export"
	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/result"
	"github.com/sqlpane/sqlpane/internal/value"
)

type sqlRequest struct {
	SQL string `json:"sql"`
}

type pageRequest struct {
	Page *int `json:"page"`
}

type exportRequest struct {
	Format string `json:"format"`
}

type dispatchResponse struct {
	ExecutionID string `json:"execution_id"`
	Token       uint64 `json:"token"`
	Status      string `json:"status"`
}

type pageResponse struct {
	Columns   []string        `json:"columns"`
	Rows      [][]value.Value `json:"rows"`
	PageIndex int             `json:"page_index"`
	PageCount int             `json:"page_count"`
	RowCount  int             `json:"row_count"`
	ElapsedMs int64           `json:"elapsed_ms"`
}

type executionResponse struct {
	ExecutionID string        `json:"execution_id"`
	Token       uint64        `json:"token"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Page        *pageResponse `json:"page,omitempty"`
}

func handleCreateExecution(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !executionsConfigured(deps, w, r) {
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	sqlText, ok := readSQL(w, r)
	if !ok {
		return
	}

	entry := deps.Executions.Create()
	token, err := dispatch(deps, r, entry, sqlText)
	if err != nil {
		_ = deps.Executions.Delete(entry.ID)
		writeDispatchError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/executions/"+entry.ID)
	writeJSON(w, http.StatusAccepted, dispatchResponse{
		ExecutionID: entry.ID,
		Token:       uint64(token),
		Status:      execution.StatusRunning.String(),
	})
}

func handleRedispatch(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !executionsConfigured(deps, w, r) {
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	entry, ok := lookupExecution(deps, w, r)
	if !ok {
		return
	}
	sqlText, ok := readSQL(w, r)
	if !ok {
		return
	}
	token, err := dispatch(deps, r, entry, sqlText)
	if err != nil {
		writeDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dispatchResponse{
		ExecutionID: entry.ID,
		Token:       uint64(token),
		Status:      execution.StatusRunning.String(),
	})
}

func handleGetExecution(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !executionsConfigured(deps, w, r) {
		return
	}
	entry, ok := lookupExecution(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(entry.ID, entry.Cell.Snapshot()))
}

func handleSetPage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !executionsConfigured(deps, w, r) {
		return
	}
	entry, ok := lookupExecution(deps, w, r)
	if !ok {
		return
	}
	var req pageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid page request body", false, map[string]any{"details": err.Error()})
		return
	}
	if req.Page == nil {
		writeError(r.Context(), w, http.StatusBadRequest, "PAGE_REQUIRED", "page is required", false, nil)
		return
	}

	outcome, err := entry.Cell.SetPage(*req.Page)
	switch {
	case errors.Is(err, execution.ErrNotReady):
		writeError(r.Context(), w, http.StatusConflict, "EXECUTION_NOT_READY", err.Error(), outcome.Status() == execution.StatusRunning, map[string]any{"status": outcome.Status().String()})
		return
	case errors.Is(err, execution.ErrPageOutOfRange):
		writeError(r.Context(), w, http.StatusBadRequest, "PAGE_OUT_OF_RANGE", err.Error(), false, map[string]any{"page": *req.Page, "page_count": outcome.PageCount()})
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "PAGE_FAILED", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(entry.ID, outcome))
}

func handleDeleteExecution(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !executionsConfigured(deps, w, r) {
		return
	}
	if err := deps.Executions.Delete(r.PathValue("id")); err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "EXECUTION_NOT_FOUND", err.Error(), false, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleDownloadExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !executionsConfigured(deps, w, r) {
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	entry, ok := lookupExecution(deps, w, r)
	if !ok {
		return
	}
	exporter, ok := exporterFor(w, r, r.URL.Query().Get("format"))
	if !ok {
		return
	}
	full, ok := successfulResult(w, r, entry.Cell.Snapshot())
	if !ok {
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, entry.ID, exporter.Extension()))
	w.WriteHeader(http.StatusOK)
	if err := exporter.Export(w, full); err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "export stream failed", "execution_id", entry.ID, "error", err)
		}
		return
	}
	observability.ObserveExport(exporter.Extension(), "http")
}

func handleStoreExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !executionsConfigured(deps, w, r) {
		return
	}
	if deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_STORE_NOT_CONFIGURED", "object store exports are not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	entry, ok := lookupExecution(deps, w, r)
	if !ok {
		return
	}
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	exporter, ok := exporterFor(w, r, req.Format)
	if !ok {
		return
	}
	full, ok := successfulResult(w, r, entry.Cell.Snapshot())
	if !ok {
		return
	}

	info, err := deps.Exports.Write(r.Context(), entry.ID, exporter, full)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", "failed to store export", true, map[string]any{"details": err.Error()})
		return
	}
	body := map[string]any{
		"execution_id": entry.ID,
		"key":          info.Key,
		"size":         info.Size,
		"format":       exporter.Extension(),
	}
	if info.URL != "" {
		body["url"] = info.URL
	}
	writeJSON(w, http.StatusCreated, body)
}

func executionsConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Executions == nil || deps.Dispatcher == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXECUTIONS_NOT_CONFIGURED", "execution dependencies are not configured", false, nil)
		return false
	}
	return true
}

func lookupExecution(deps Dependencies, w http.ResponseWriter, r *http.Request) (execution.Entry, bool) {
	id := r.PathValue("id")
	entry, err := deps.Executions.Get(id)
	if err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "EXECUTION_NOT_FOUND", "execution was not found", false, map[string]any{"execution_id": id})
		return execution.Entry{}, false
	}
	return entry, true
}

func readSQL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req sqlRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid execution request body", false, map[string]any{"details": err.Error()})
		return "", false
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return "", false
	}
	return req.SQL, true
}

// dispatch detaches the execution from the request so it outlives the 202.
func dispatch(deps Dependencies, r *http.Request, entry execution.Entry, sqlText string) (execution.Token, error) {
	ctx := observability.ContextWithExecutionID(context.WithoutCancel(r.Context()), entry.ID)
	token, err := deps.Dispatcher.Dispatch(ctx, entry.Cell, sqlText)
	if err == nil {
		observability.ContextLogger(ctx, deps.Logger).Info("execution dispatched", slog.Uint64("token", uint64(token)))
	}
	return token, err
}

func writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, execution.ErrBusy) {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "EXECUTION_POOL_BUSY", err.Error(), true, nil)
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "DISPATCH_FAILED", err.Error(), true, nil)
}

func exporterFor(w http.ResponseWriter, r *http.Request, rawFormat string) (export.Exporter, bool) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), false, nil)
		return nil, false
	}
	exporter, err := export.ForFormat(format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), false, nil)
		return nil, false
	}
	return exporter, true
}

func successfulResult(w http.ResponseWriter, r *http.Request, outcome execution.Outcome) (result.Result, bool) {
	if outcome.Status() != execution.StatusSuccess {
		writeError(r.Context(), w, http.StatusConflict, "EXECUTION_NOT_READY", execution.ErrNotReady.Error(), outcome.Status() == execution.StatusRunning, map[string]any{"status": outcome.Status().String()})
		return result.Result{}, false
	}
	return outcome.FullResult(), true
}

func toExecutionResponse(id string, outcome execution.Outcome) executionResponse {
	response := executionResponse{
		ExecutionID: id,
		Token:       uint64(outcome.Token()),
		Status:      outcome.Status().String(),
	}
	switch outcome.Status() {
	case execution.StatusError:
		response.Error = outcome.ErrorMessage()
	case execution.StatusSuccess:
		response.Page = toPageResponse(outcome)
	}
	return response
}

func toPageResponse(outcome execution.Outcome) *pageResponse {
	page := outcome.CurrentPage()
	columns := page.Columns()
	rows := make([][]value.Value, page.RowCount())
	for i := range rows {
		row := make([]value.Value, len(columns))
		for c, column := range columns {
			if i < len(column.Values) {
				row[c] = column.Values[i]
			}
		}
		rows[i] = row
	}
	return &pageResponse{
		Columns:   page.Names(),
		Rows:      rows,
		PageIndex: outcome.CurrentPageIndex(),
		PageCount: outcome.PageCount(),
		RowCount:  outcome.RowCount(),
		ElapsedMs: outcome.ElapsedMillis(),
	}
}

// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.PayrollService
	board   common.BoardReader
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs the REST adapter. board may be nil, in which case
// `/payroll/live` answers 501.
func NewHandler(service common.PayrollService, board common.BoardReader) *Handler {
	return &Handler{
		service: service,
		board:   board,
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "payroll service is not configured",
		})
		return
	}

	path := normalizePath(r.URL.Path)
	switch path {
	case "workers":
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodGet:  h.handleListWorkers,
			http.MethodPost: h.handleCreateWorker,
		})
	case "attendance":
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodGet:  h.handleListAttendance,
			http.MethodPost: h.handleMarkAttendance,
		})
	case "attendance/correct":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleCorrectAttendance})
	case "expenses":
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodGet:  h.handleListExpenses,
			http.MethodPost: h.handleRecordExpense,
		})
	case "payroll/view":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handlePayrollView})
	case "payroll/board":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handlePayrollBoard})
	case "payroll/live":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handlePayrollLive})
	case "payroll/commit":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleCommitPayroll})
	case "payroll/paid":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleMarkPaid})
	case "payroll/unpaid":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleMarkUnpaid})
	case "payroll/ledger":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handleListLedger})
	case "budget":
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodGet: h.handleBudgetSummary,
			http.MethodPut: h.handleSetBudget,
		})
	case "budget/recalculate":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodPost: h.handleRecalculateBudget})
	case "activity":
		h.route(w, r, map[string]http.HandlerFunc{http.MethodGet: h.handleListActivity})
	default:
		workerID, ok := resolveWorkerActiveID(path)
		if !ok {
			writeJSONError(w, http.StatusNotFound, APIError{
				Code:    "not_found",
				Message: "endpoint not found",
			})
			return
		}
		h.route(w, r, map[string]http.HandlerFunc{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) {
				h.handleSetWorkerActive(w, r, workerID)
			},
		})
	}
}

// route dispatches on method and writes 405 with an Allow header otherwise.
func (h *Handler) route(w http.ResponseWriter, r *http.Request, byMethod map[string]http.HandlerFunc) {
	if fn, ok := byMethod[r.Method]; ok {
		fn(w, r)
		return
	}
	allowed := make([]string, 0, len(byMethod))
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut} {
		if _, ok := byMethod[m]; ok {
			allowed = append(allowed, m)
		}
	}
	writeMethodNotAllowed(w, allowed...)
}

// handleListWorkers serves GET `/workers`.
func (h *Handler) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	workers, err := h.service.ListWorkers(r.Context(), includeInactive)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

// handleCreateWorker serves POST `/workers`.
func (h *Handler) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	var req common.CreateWorkerRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	worker, err := h.service.CreateWorker(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

// handleSetWorkerActive serves POST `/workers/{id}/active`.
func (h *Handler) handleSetWorkerActive(w http.ResponseWriter, r *http.Request, workerID string) {
	var payload struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if payload.Active == nil {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "active is required",
		})
		return
	}
	worker, err := h.service.SetWorkerActive(r.Context(), common.SetWorkerActiveRequest{
		WorkerID: workerID,
		Active:   *payload.Active,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

// handleListAttendance serves GET `/attendance`.
func (h *Handler) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	facts, err := h.service.ListAttendance(r.Context(), common.ListAttendanceRequest{
		WorkerID: strings.TrimSpace(q.Get("worker_id")),
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendance": facts})
}

// handleMarkAttendance serves POST `/attendance`.
func (h *Handler) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req common.MarkAttendanceRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.service.MarkAttendance(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleCorrectAttendance serves POST `/attendance/correct`.
func (h *Handler) handleCorrectAttendance(w http.ResponseWriter, r *http.Request) {
	var req common.CorrectAttendanceRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.service.CorrectAttendance(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListExpenses serves GET `/expenses`.
func (h *Handler) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expenses, err := h.service.ListExpenses(r.Context(), common.ListExpensesRequest{
		Category: strings.TrimSpace(q.Get("category")),
		WorkerID: strings.TrimSpace(q.Get("worker_id")),
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

// handleRecordExpense serves POST `/expenses`.
func (h *Handler) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req common.RecordExpenseRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	expense, err := h.service.RecordExpense(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

// handlePayrollView serves GET `/payroll/view`.
func (h *Handler) handlePayrollView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.PayrollView(r.Context(), common.PayrollRequest{
		WorkerID:      strings.TrimSpace(r.URL.Query().Get("worker_id")),
		PeriodRequest: periodFromQuery(r),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePayrollBoard serves GET `/payroll/board`.
func (h *Handler) handlePayrollBoard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.PayrollBoard(r.Context(), periodFromQuery(r))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// handlePayrollLive serves GET `/payroll/live` from the live board snapshot.
func (h *Handler) handlePayrollLive(w http.ResponseWriter, _ *http.Request) {
	if h.board == nil {
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: "live payroll board is not running",
		})
		return
	}
	writeJSON(w, http.StatusOK, h.board.Snapshot())
}

// handleCommitPayroll serves POST `/payroll/commit`.
func (h *Handler) handleCommitPayroll(w http.ResponseWriter, r *http.Request) {
	var req common.CommitPayrollRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	entries, err := h.service.CommitPayroll(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleMarkPaid serves POST `/payroll/paid`.
func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req common.PayrollRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	entry, err := h.service.MarkPaid(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleMarkUnpaid serves POST `/payroll/unpaid`.
func (h *Handler) handleMarkUnpaid(w http.ResponseWriter, r *http.Request) {
	var req common.PayrollRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.service.MarkUnpaid(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListLedger serves GET `/payroll/ledger`.
func (h *Handler) handleListLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.service.ListLedger(r.Context(), common.ListLedgerRequest{
		WorkerID:      strings.TrimSpace(q.Get("worker_id")),
		Status:        strings.TrimSpace(q.Get("status")),
		PeriodRequest: periodFromQuery(r),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleBudgetSummary serves GET `/budget`.
func (h *Handler) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.BudgetSummary(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSetBudget serves PUT `/budget`.
func (h *Handler) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req common.SetBudgetRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	summary, err := h.service.SetBudget(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRecalculateBudget serves POST `/budget/recalculate`.
func (h *Handler) handleRecalculateBudget(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RecalculateBudget(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListActivity serves GET `/activity`.
func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("limit must be an integer: %q", raw),
			})
			return
		}
		limit = parsed
	}
	entries, err := h.service.ListActivity(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func periodFromQuery(r *http.Request) common.PeriodRequest {
	q := r.URL.Query()
	return common.PeriodRequest{
		Start: strings.TrimSpace(q.Get("start")),
		End:   strings.TrimSpace(q.Get("end")),
	}
}

// resolveWorkerActiveID parses `/workers/{id}/active` and returns `{id}`.
func resolveWorkerActiveID(path string) (string, bool) {
	const (
		prefix = "workers/"
		suffix = "/active"
	)
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, domain.ErrDuplicateAttendance):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "duplicate_attendance",
			Message: err.Error(),
			Hint:    "Use POST /attendance/correct to change an existing day.",
		})
	case errors.Is(err, app.ErrVersionConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "version_conflict",
			Message: err.Error(),
			Hint:    "Reload the attendance record and retry the correction.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}

/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the recurring engine and its narrow ledger surfaces via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Recurring schedules (workspace-scoped):
    GET    /api/workspaces/{wid}/recurring                List (active filter, pagination)
    POST   /api/workspaces/{wid}/recurring                Create
    GET    /api/workspaces/{wid}/recurring/pending        Due on or before as_of
    GET    /api/workspaces/{wid}/recurring/{id}           Get
    PUT    /api/workspaces/{wid}/recurring/{id}           Update
    DELETE /api/workspaces/{wid}/recurring/{id}           Soft-delete
    POST   /api/workspaces/{wid}/recurring/{id}/activate
    POST   /api/workspaces/{wid}/recurring/{id}/deactivate
    POST   /api/workspaces/{wid}/recurring/{id}/execute   On-demand trigger

  Ledger surfaces:
    GET/POST /api/workspaces/{wid}/accounts
    GET/POST /api/workspaces/{wid}/categories
    DELETE   /api/workspaces/{wid}/categories/{id}
    GET      /api/workspaces/{wid}/transactions

  Admin:
    POST   /api/admin/sweep?as_of=YYYY-MM-DD              Global batch sweep

ERROR HANDLING:
  Errors are returned as JSON {"error": ..., "detail": ...} with status:
  - 400: Validation errors, schedule state errors (inactive/expired)
  - 403: Cross-workspace access
  - 404: Missing resources
  - 500: Internal errors

SECURITY NOTE:
  Authentication is out of scope here; the acting user is taken from the
  X-User-ID header and workspace membership is assumed resolved upstream.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/recurring"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Recurring *recurring.Service
	Stores    recurring.Stores
}

// NewHandler creates a handler over the engine and its stores.
func NewHandler(service *recurring.Service, stores recurring.Stores) *Handler {
	return &Handler{Recurring: service, Stores: stores}
}

func workspaceID(r *http.Request) ledger.WorkspaceID {
	return ledger.WorkspaceID(chi.URLParam(r, "workspaceID"))
}

func actorID(r *http.Request) ledger.UserID {
	return ledger.UserID(r.Header.Get("X-User-ID"))
}

// =============================================================================
// RECURRING SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns a workspace's schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	filter := ledger.ScheduleListFilter{}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid active filter", err)
			return
		}
		filter.Active = &active
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	schedules, err := h.Recurring.ListForWorkspace(r.Context(), workspaceID(r), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = scheduleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPendingSchedules returns schedules due on or before as_of (default today).
func (h *Handler) ListPendingSchedules(w http.ResponseWriter, r *http.Request) {
	var asOf *ledger.Date
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
			return
		}
		asOf = &d
	}

	schedules, err := h.Recurring.ListPending(r.Context(), workspaceID(r), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = scheduleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSchedule creates a recurring schedule.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	startDate, err := ledger.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}

	input := recurring.CreateInput{
		Kind:        ledger.TransactionKind(req.Kind),
		AccountID:   ledger.AccountID(req.AccountID),
		CategoryID:  ledger.CategoryID(req.CategoryID),
		Amount:      amount,
		Description: req.Description,
		Frequency:   ledger.Frequency(req.Frequency),
		DayOfWeek:   req.DayOfWeek,
		DayOfMonth:  req.DayOfMonth,
		StartDate:   startDate,
	}
	if req.EndDate != nil {
		endDate, err := ledger.ParseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
			return
		}
		input.EndDate = &endDate
	}

	schedule, err := h.Recurring.Create(r.Context(), workspaceID(r), actorID(r), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scheduleDTO(*schedule))
}

// GetSchedule returns one schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := ledger.ScheduleID(chi.URLParam(r, "id"))
	schedule, err := h.Recurring.Get(r.Context(), id, workspaceID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleDTO(*schedule))
}

// UpdateSchedule applies a partial update.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	input := recurring.UpdateInput{
		Description: req.Description,
		DayOfWeek:   req.DayOfWeek,
		DayOfMonth:  req.DayOfMonth,
		Active:      req.Active,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		input.Amount = &amount
	}
	if req.CategoryID != nil {
		id := ledger.CategoryID(*req.CategoryID)
		input.CategoryID = &id
	}
	if req.Frequency != nil {
		freq := ledger.Frequency(*req.Frequency)
		input.Frequency = &freq
	}
	if req.EndDate != nil {
		endDate, err := ledger.ParseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
			return
		}
		input.EndDate = &endDate
	}

	id := ledger.ScheduleID(chi.URLParam(r, "id"))
	schedule, err := h.Recurring.Update(r.Context(), id, workspaceID(r), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleDTO(*schedule))
}

// DeleteSchedule soft-deletes a schedule.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := ledger.ScheduleID(chi.URLParam(r, "id"))
	if err := h.Recurring.Delete(r.Context(), id, workspaceID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateSchedule turns a schedule back on.
func (h *Handler) ActivateSchedule(w http.ResponseWriter, r *http.Request) {
	id := ledger.ScheduleID(chi.URLParam(r, "id"))
	schedule, err := h.Recurring.Activate(r.Context(), id, workspaceID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleDTO(*schedule))
}

// DeactivateSchedule turns a schedule off.
func (h *Handler) DeactivateSchedule(w http.ResponseWriter, r *http.Request) {
	id := ledger.ScheduleID(chi.URLParam(r, "id"))
	schedule, err := h.Recurring.Deactivate(r.Context(), id, workspaceID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleDTO(*schedule))
}

// ExecuteSchedule is the on-demand trigger: one occurrence, now.
func (h *Handler) ExecuteSchedule(w http.ResponseWriter, r *http.Request) {
	id := ledger.ScheduleID(chi.URLParam(r, "id"))
	tx, err := h.Recurring.ExecuteOnce(r.Context(), id, workspaceID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionDTO(*tx))
}

// =============================================================================
// SWEEP HANDLER
// =============================================================================

// RunSweep triggers the global batch sweep. as_of defaults to today.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	asOf := ledger.DateOf(time.Now())
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
			return
		}
		asOf = d
	}

	report, err := h.Recurring.RunGlobalSweep(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, sweepReportDTO(report))
}

// =============================================================================
// ACCOUNT / CATEGORY / TRANSACTION HANDLERS
// =============================================================================

// ListAccounts returns a workspace's accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Stores.Accounts.ListAccounts(r.Context(), workspaceID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = AccountDTO{ID: string(a.ID), Name: a.Name, Currency: a.Currency}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates an account in the workspace.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	account := ledger.Account{
		ID:          ledger.AccountID(uuid.NewString()),
		WorkspaceID: workspaceID(r),
		Name:        req.Name,
		Currency:    req.Currency,
	}
	if err := h.Stores.Accounts.SaveAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, AccountDTO{ID: string(account.ID), Name: account.Name, Currency: account.Currency})
}

// ListCategories returns a workspace's categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Stores.Categories.ListCategories(r.Context(), workspaceID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list categories", err)
		return
	}
	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = CategoryDTO{ID: string(c.ID), Name: c.Name, Kind: string(c.Kind)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory creates a category with an income/expense polarity.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	kind := ledger.CategoryKind(req.Kind)
	if kind != ledger.CategoryIncome && kind != ledger.CategoryExpense {
		writeError(w, http.StatusBadRequest, "Invalid category kind (income|expense)", nil)
		return
	}
	category := ledger.Category{
		ID:          ledger.CategoryID(uuid.NewString()),
		WorkspaceID: workspaceID(r),
		Name:        req.Name,
		Kind:        kind,
	}
	if err := h.Stores.Categories.SaveCategory(r.Context(), category); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, CategoryDTO{ID: string(category.ID), Name: category.Name, Kind: string(category.Kind)})
}

// DeleteCategory removes a category.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := ledger.CategoryID(chi.URLParam(r, "id"))
	if err := h.Stores.Categories.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTransactions returns a workspace's ledger transactions, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	transactions, err := h.Stores.Transactions.ListTransactions(r.Context(), workspaceID(r), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	dtos := make([]TransactionDTO, len(transactions))
	for i, tx := range transactions {
		dtos[i] = transactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeDomainError maps engine error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, ledger.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "Access denied", err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

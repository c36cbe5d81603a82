/*
handlers_test.go - HTTP-level tests for the recurring schedule API

Tests for:
- Schedule lifecycle over HTTP (create, execute, update, delete)
- Error envelope and status mapping
- The admin sweep endpoint
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/recurring"
	"github.com/fintrack/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	router  http.Handler
	store   *sqlite.Store
	account ledger.AccountID
	expense ledger.CategoryID
}

// newTestEnv wires the full stack over an in-memory database with the clock
// frozen on 2024-03-01.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	account := ledger.Account{ID: "acct-1", WorkspaceID: "ws-1", Name: "Checking", Currency: "USD"}
	if err := store.SaveAccount(ctx, account); err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	category := ledger.Category{ID: "cat-1", WorkspaceID: "ws-1", Name: "Bills", Kind: ledger.CategoryExpense}
	if err := store.SaveCategory(ctx, category); err != nil {
		t.Fatalf("Failed to seed category: %v", err)
	}

	stores := recurring.Stores{
		Schedules:    store,
		Transactions: store,
		Accounts:     store,
		Categories:   store,
	}
	service := recurring.NewServiceWithClock(stores, func() time.Time {
		return time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	})

	return &testEnv{
		router:  NewRouter(NewHandler(service, stores)),
		store:   store,
		account: account.ID,
		expense: category.ID,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (e *testEnv) createSchedule(t *testing.T, req CreateScheduleRequest) ScheduleDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/workspaces/ws-1/recurring", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (body %s)", rec.Code, rec.Body.String())
	}
	return decode[ScheduleDTO](t, rec)
}

func monthlyRequest(e *testEnv, day int) CreateScheduleRequest {
	return CreateScheduleRequest{
		Kind:        "expense",
		AccountID:   string(e.account),
		CategoryID:  string(e.expense),
		Amount:      "49.99",
		Description: "Streaming",
		Frequency:   "monthly",
		DayOfMonth:  &day,
		StartDate:   "2024-03-01",
	}
}

// =============================================================================
// SCHEDULE LIFECYCLE
// =============================================================================

func TestCreateSchedule_ReturnsComputedNextDue(t *testing.T) {
	// GIVEN: A monthly day-2 schedule created on March 1
	// WHEN: POSTing it
	// THEN: 201 with next_due 2024-03-02 and active=true
	env := newTestEnv(t)

	dto := env.createSchedule(t, monthlyRequest(env, 2))
	if dto.NextDue != "2024-03-02" {
		t.Errorf("Expected next_due 2024-03-02, got %s", dto.NextDue)
	}
	if !dto.Active {
		t.Error("Expected schedule to be active")
	}
	if dto.UserID != "user-1" {
		t.Errorf("Expected actor user-1, got %s", dto.UserID)
	}
}

func TestCreateSchedule_InvalidConfigurationIs400(t *testing.T) {
	env := newTestEnv(t)

	req := monthlyRequest(env, 2)
	req.DayOfMonth = nil
	rec := env.do(t, http.MethodPost, "/api/workspaces/ws-1/recurring", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] == "" || body["detail"] == "" {
		t.Errorf("Expected error envelope, got %v", body)
	}
}

func TestGetSchedule_WrongWorkspaceIs404(t *testing.T) {
	env := newTestEnv(t)
	dto := env.createSchedule(t, monthlyRequest(env, 2))

	rec := env.do(t, http.MethodGet, "/api/workspaces/ws-other/recurring/"+dto.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestUpdateSchedule_RecurrenceChangeMovesCursor(t *testing.T) {
	env := newTestEnv(t)
	dto := env.createSchedule(t, monthlyRequest(env, 2))

	day := 15
	rec := env.do(t, http.MethodPut, "/api/workspaces/ws-1/recurring/"+dto.ID, UpdateScheduleRequest{
		DayOfMonth: &day,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	updated := decode[ScheduleDTO](t, rec)
	if updated.NextDue != "2024-03-15" {
		t.Errorf("Expected next_due 2024-03-15, got %s", updated.NextDue)
	}
}

func TestDeleteSchedule_ThenGetIs404(t *testing.T) {
	env := newTestEnv(t)
	dto := env.createSchedule(t, monthlyRequest(env, 2))

	rec := env.do(t, http.MethodDelete, "/api/workspaces/ws-1/recurring/"+dto.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/workspaces/ws-1/recurring/"+dto.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestListSchedules_ActiveFilter(t *testing.T) {
	env := newTestEnv(t)
	first := env.createSchedule(t, monthlyRequest(env, 2))
	env.createSchedule(t, monthlyRequest(env, 15))

	rec := env.do(t, http.MethodPost, "/api/workspaces/ws-1/recurring/"+first.ID+"/deactivate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/workspaces/ws-1/recurring?active=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	list := decode[[]ScheduleDTO](t, rec)
	if len(list) != 1 {
		t.Fatalf("Expected 1 active schedule, got %d", len(list))
	}
}

// =============================================================================
// EXECUTION
// =============================================================================

func TestExecuteSchedule_CreatesTransactionAndAdvancesCursor(t *testing.T) {
	// GIVEN: A monthly day-2 schedule
	// WHEN: Triggering it manually before it is due
	// THEN: 201 with a back-referencing transaction; the cursor advances past
	//       the skipped occurrence
	env := newTestEnv(t)
	dto := env.createSchedule(t, monthlyRequest(env, 2))

	rec := env.do(t, http.MethodPost, "/api/workspaces/ws-1/recurring/"+dto.ID+"/execute", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (body %s)", rec.Code, rec.Body.String())
	}
	tx := decode[TransactionDTO](t, rec)
	if tx.ScheduleID != dto.ID {
		t.Errorf("Expected back-reference %s, got %s", dto.ID, tx.ScheduleID)
	}
	if tx.Amount != "49.99" {
		t.Errorf("Expected amount 49.99, got %s", tx.Amount)
	}

	rec = env.do(t, http.MethodGet, "/api/workspaces/ws-1/recurring/"+dto.ID, nil)
	reread := decode[ScheduleDTO](t, rec)
	if reread.NextDue != "2024-04-02" {
		t.Errorf("Expected next_due 2024-04-02, got %s", reread.NextDue)
	}

	rec = env.do(t, http.MethodGet, "/api/workspaces/ws-1/transactions", nil)
	listed := decode[[]TransactionDTO](t, rec)
	if len(listed) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(listed))
	}
}

func TestExecuteSchedule_InactiveIs400(t *testing.T) {
	env := newTestEnv(t)
	dto := env.createSchedule(t, monthlyRequest(env, 2))

	rec := env.do(t, http.MethodPost, "/api/workspaces/ws-1/recurring/"+dto.ID+"/deactivate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/workspaces/ws-1/recurring/"+dto.ID+"/execute", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for inactive schedule, got %d", rec.Code)
	}
}

// =============================================================================
// SWEEP ENDPOINT
// =============================================================================

func TestRunSweep_BackfillsAndReports(t *testing.T) {
	// GIVEN: A monthly day-2 schedule due March 2
	// WHEN: Sweeping as of June 10
	// THEN: Four occurrences (Mar-Jun) materialize and the report says so
	env := newTestEnv(t)
	env.createSchedule(t, monthlyRequest(env, 2))

	rec := env.do(t, http.MethodPost, "/api/admin/sweep?as_of=2024-06-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	report := decode[SweepReportDTO](t, rec)
	if report.AsOf != "2024-06-10" {
		t.Errorf("Expected as_of 2024-06-10, got %s", report.AsOf)
	}
	if report.ProcessedSchedules != 1 {
		t.Errorf("Expected 1 processed schedule, got %d", report.ProcessedSchedules)
	}
	if report.SuccessfulExecutions != 4 {
		t.Errorf("Expected 4 successful executions, got %d", report.SuccessfulExecutions)
	}
	if report.FailedSchedules != 0 {
		t.Errorf("Expected 0 failed schedules, got %d", report.FailedSchedules)
	}

	rec = env.do(t, http.MethodGet, "/api/workspaces/ws-1/transactions", nil)
	listed := decode[[]TransactionDTO](t, rec)
	if len(listed) != 4 {
		t.Fatalf("Expected 4 transactions, got %d", len(listed))
	}
}

func TestRunSweep_BrokenScheduleIsReportedNotFatal(t *testing.T) {
	// GIVEN: Two due schedules, one pointing at a deleted category
	// WHEN: Sweeping
	// THEN: 200 with one failure in the report; the healthy schedule executed
	env := newTestEnv(t)
	ctx := context.Background()

	doomed := ledger.Category{ID: "cat-doomed", WorkspaceID: "ws-1", Name: "Doomed", Kind: ledger.CategoryExpense}
	if err := env.store.SaveCategory(ctx, doomed); err != nil {
		t.Fatalf("Failed to seed category: %v", err)
	}

	env.createSchedule(t, monthlyRequest(env, 2))
	brokenReq := monthlyRequest(env, 2)
	brokenReq.CategoryID = string(doomed.ID)
	broken := env.createSchedule(t, brokenReq)

	if err := env.store.DeleteCategory(ctx, doomed.ID); err != nil {
		t.Fatalf("Failed to delete category: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/admin/sweep?as_of=2024-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	report := decode[SweepReportDTO](t, rec)
	if report.SuccessfulExecutions != 1 {
		t.Errorf("Expected 1 successful execution, got %d", report.SuccessfulExecutions)
	}
	if report.FailedSchedules != 1 {
		t.Errorf("Expected 1 failed schedule, got %d", report.FailedSchedules)
	}
	if len(report.Errors) != 1 || report.Errors[0].ScheduleID != broken.ID {
		t.Fatalf("Expected the broken schedule in the error list, got %+v", report.Errors)
	}
}

func TestRunSweep_InvalidAsOfIs400(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/sweep?as_of=not-a-date", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

// =============================================================================
// ACCOUNTS AND CATEGORIES
// =============================================================================

func TestCreateAndListAccounts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/workspaces/ws-1/accounts", CreateAccountRequest{
		Name: "Savings", Currency: "EUR",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/workspaces/ws-1/accounts", nil)
	accounts := decode[[]AccountDTO](t, rec)
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 accounts (seed + new), got %d", len(accounts))
	}
}

func TestCreateCategory_InvalidKindIs400(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/workspaces/ws-1/categories", CreateCategoryRequest{
		Name: "Weird", Kind: "transfer",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestListTransactions_Pagination(t *testing.T) {
	env := newTestEnv(t)
	dto := env.createSchedule(t, monthlyRequest(env, 2))

	rec := env.do(t, http.MethodPost, "/api/admin/sweep?as_of=2024-05-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/workspaces/ws-1/transactions?offset=1&limit=1", nil)
	listed := decode[[]TransactionDTO](t, rec)
	if len(listed) != 1 {
		t.Fatalf("Expected 1 transaction on the page, got %d", len(listed))
	}
	if listed[0].ScheduleID != dto.ID {
		t.Errorf("Expected back-reference %s, got %s", dto.ID, listed[0].ScheduleID)
	}
}

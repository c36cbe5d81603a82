package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedRefs(t *testing.T, store *sqlite.Store, ws ledger.WorkspaceID) (ledger.AccountID, ledger.CategoryID) {
	ctx := context.Background()
	account := ledger.Account{ID: "acct-" + ledger.AccountID(ws), WorkspaceID: ws, Name: "Checking", Currency: "USD"}
	category := ledger.Category{ID: "cat-" + ledger.CategoryID(ws), WorkspaceID: ws, Name: "Bills", Kind: ledger.CategoryExpense}
	require.NoError(t, store.SaveAccount(ctx, account))
	require.NoError(t, store.SaveCategory(ctx, category))
	return account.ID, category.ID
}

func testSchedule(id ledger.ScheduleID, ws ledger.WorkspaceID, account ledger.AccountID, category ledger.CategoryID, nextDue ledger.Date) ledger.Schedule {
	day := 2
	return ledger.Schedule{
		ID:          id,
		WorkspaceID: ws,
		UserID:      "user-1",
		Kind:        ledger.KindExpense,
		AccountID:   account,
		CategoryID:  category,
		Amount:      decimal.RequireFromString("49.99"),
		Description: "Streaming",
		Frequency:   ledger.FrequencyMonthly,
		DayOfMonth:  &day,
		StartDate:   ledger.NewDate(2024, time.March, 1),
		NextDue:     nextDue,
		Active:      true,
		CreatedAt:   time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// SCHEDULE CRUD
// =============================================================================

func TestSchedule_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account, category := seedRefs(t, store, "ws-1")

	want := testSchedule("sched-1", "ws-1", account, category, ledger.NewDate(2024, time.April, 2))
	end := ledger.NewDate(2024, time.December, 31)
	want.EndDate = &end
	require.NoError(t, store.CreateSchedule(ctx, want))

	got, err := store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.WorkspaceID, got.WorkspaceID)
	assert.Equal(t, want.Kind, got.Kind)
	assert.True(t, want.Amount.Equal(got.Amount))
	assert.Equal(t, want.Frequency, got.Frequency)
	require.NotNil(t, got.DayOfMonth)
	assert.Equal(t, 2, *got.DayOfMonth)
	assert.Nil(t, got.DayOfWeek)
	assert.True(t, want.NextDue.Equal(got.NextDue))
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))
	assert.True(t, got.Active)
	assert.Nil(t, got.LastExecutedAt)
}

func TestSchedule_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetSchedule(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedule_UpdatePatchesOnlyGivenFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account, category := seedRefs(t, store, "ws-1")
	require.NoError(t, store.CreateSchedule(ctx, testSchedule("sched-1", "ws-1", account, category, ledger.NewDate(2024, time.April, 2))))

	amount := decimal.RequireFromString("59.99")
	nextDue := ledger.NewDate(2024, time.May, 2)
	executedAt := time.Date(2024, time.April, 2, 6, 0, 0, 0, time.UTC)
	updated, err := store.UpdateSchedule(ctx, "sched-1", ledger.SchedulePatch{
		Amount:         &amount,
		NextDue:        &nextDue,
		LastExecutedAt: &executedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.True(t, amount.Equal(updated.Amount))
	assert.True(t, nextDue.Equal(updated.NextDue))
	require.NotNil(t, updated.LastExecutedAt)
	assert.True(t, executedAt.Equal(*updated.LastExecutedAt))
	// Untouched fields survive.
	assert.Equal(t, "Streaming", updated.Description)
	assert.Equal(t, ledger.FrequencyMonthly, updated.Frequency)
}

func TestSchedule_UpdateMissingReturnsNilNil(t *testing.T) {
	store := newTestStore(t)

	active := false
	updated, err := store.UpdateSchedule(context.Background(), "nope", ledger.SchedulePatch{Active: &active})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestSchedule_SoftDeleteHidesFromEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account, category := seedRefs(t, store, "ws-1")
	require.NoError(t, store.CreateSchedule(ctx, testSchedule("sched-1", "ws-1", account, category, ledger.NewDate(2024, time.March, 2))))

	deleted, err := store.DeleteSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	listed, err := store.ListByWorkspace(ctx, "ws-1", ledger.ScheduleListFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	due, err := store.ListDueGlobal(ctx, ledger.NewDate(2024, time.June, 1))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Second delete is a no-op.
	deleted, err = store.DeleteSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

// =============================================================================
// LISTING AND DISCOVERY
// =============================================================================

func TestSchedule_ListByWorkspaceFiltersAndPaginates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account, category := seedRefs(t, store, "ws-1")

	for i, due := range []ledger.Date{
		ledger.NewDate(2024, time.March, 5),
		ledger.NewDate(2024, time.March, 1),
		ledger.NewDate(2024, time.March, 3),
	} {
		s := testSchedule(ledger.ScheduleID(string(rune('a'+i))), "ws-1", account, category, due)
		if i == 2 {
			s.Active = false
		}
		require.NoError(t, store.CreateSchedule(ctx, s))
	}

	all, err := store.ListByWorkspace(ctx, "ws-1", ledger.ScheduleListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by next_due.
	assert.Equal(t, ledger.ScheduleID("b"), all[0].ID)
	assert.Equal(t, ledger.ScheduleID("c"), all[1].ID)
	assert.Equal(t, ledger.ScheduleID("a"), all[2].ID)

	active := true
	onlyActive, err := store.ListByWorkspace(ctx, "ws-1", ledger.ScheduleListFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, onlyActive, 2)

	page, err := store.ListByWorkspace(ctx, "ws-1", ledger.ScheduleListFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ledger.ScheduleID("c"), page[0].ID)
}

func TestSchedule_ListDueGlobalOrdersByWorkspaceThenDueThenID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	accountB, categoryB := seedRefs(t, store, "ws-b")
	accountA, categoryA := seedRefs(t, store, "ws-a")

	require.NoError(t, store.CreateSchedule(ctx, testSchedule("s2", "ws-b", accountB, categoryB, ledger.NewDate(2024, time.March, 1))))
	require.NoError(t, store.CreateSchedule(ctx, testSchedule("s3", "ws-a", accountA, categoryA, ledger.NewDate(2024, time.March, 2))))
	require.NoError(t, store.CreateSchedule(ctx, testSchedule("s1", "ws-a", accountA, categoryA, ledger.NewDate(2024, time.March, 2))))
	// Not yet due.
	require.NoError(t, store.CreateSchedule(ctx, testSchedule("s4", "ws-a", accountA, categoryA, ledger.NewDate(2024, time.June, 1))))

	due, err := store.ListDueGlobal(ctx, ledger.NewDate(2024, time.March, 10))
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, ledger.ScheduleID("s1"), due[0].ID)
	assert.Equal(t, ledger.ScheduleID("s3"), due[1].ID)
	assert.Equal(t, ledger.ScheduleID("s2"), due[2].ID)
}

func TestSchedule_ListDueIsWorkspaceScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	accountA, categoryA := seedRefs(t, store, "ws-a")
	accountB, categoryB := seedRefs(t, store, "ws-b")

	require.NoError(t, store.CreateSchedule(ctx, testSchedule("sa", "ws-a", accountA, categoryA, ledger.NewDate(2024, time.March, 1))))
	require.NoError(t, store.CreateSchedule(ctx, testSchedule("sb", "ws-b", accountB, categoryB, ledger.NewDate(2024, time.March, 1))))

	due, err := store.ListDue(ctx, "ws-a", ledger.NewDate(2024, time.March, 1))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ledger.ScheduleID("sa"), due[0].ID)
}

// =============================================================================
// TRANSACTIONS AND REFERENTIAL INTEGRITY
// =============================================================================

func TestTransaction_RoundTripWithScheduleBackReference(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account, category := seedRefs(t, store, "ws-1")
	require.NoError(t, store.CreateSchedule(ctx, testSchedule("sched-1", "ws-1", account, category, ledger.NewDate(2024, time.March, 2))))

	tx := ledger.Transaction{
		ID:          "tx-1",
		WorkspaceID: "ws-1",
		UserID:      "user-1",
		Kind:        ledger.KindExpense,
		AccountID:   account,
		CategoryID:  category,
		Amount:      decimal.RequireFromString("49.99"),
		Description: "Streaming",
		OccurredAt:  time.Date(2024, time.March, 2, 6, 0, 0, 0, time.UTC),
		ScheduleID:  "sched-1",
		CreatedAt:   time.Date(2024, time.March, 2, 6, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateTransaction(ctx, tx))

	listed, err := store.ListTransactions(ctx, "ws-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, ledger.ScheduleID("sched-1"), listed[0].ScheduleID)
	assert.True(t, tx.Amount.Equal(listed[0].Amount))
}

func TestTransaction_MissingAccountFailsWithAccountNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, category := seedRefs(t, store, "ws-1")

	tx := ledger.Transaction{
		ID:          "tx-1",
		WorkspaceID: "ws-1",
		Kind:        ledger.KindExpense,
		AccountID:   "ghost",
		CategoryID:  category,
		Amount:      decimal.NewFromInt(10),
		OccurredAt:  time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	err := store.CreateTransaction(ctx, tx)
	assert.True(t, errors.Is(err, ledger.ErrAccountNotFound), "got %v", err)
}

func TestTransaction_DeletedCategoryFailsWithCategoryNotFound(t *testing.T) {
	// The failure mode the sweep orchestrator isolates: a schedule whose
	// category was deleted after creation.
	store := newTestStore(t)
	ctx := context.Background()
	account, category := seedRefs(t, store, "ws-1")
	require.NoError(t, store.DeleteCategory(ctx, category))

	tx := ledger.Transaction{
		ID:          "tx-1",
		WorkspaceID: "ws-1",
		Kind:        ledger.KindExpense,
		AccountID:   account,
		CategoryID:  category,
		Amount:      decimal.NewFromInt(10),
		OccurredAt:  time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	err := store.CreateTransaction(ctx, tx)
	assert.True(t, errors.Is(err, ledger.ErrCategoryNotFound), "got %v", err)
}

// =============================================================================
// ACCOUNTS AND CATEGORIES
// =============================================================================

func TestAccountsAndCategories_WorkspaceScopedListing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedRefs(t, store, "ws-1")
	seedRefs(t, store, "ws-2")

	accounts, err := store.ListAccounts(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, ledger.WorkspaceID("ws-1"), accounts[0].WorkspaceID)

	categories, err := store.ListCategories(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, ledger.CategoryExpense, categories[0].Kind)
}

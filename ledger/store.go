/*
store.go - Persistence interfaces for the ledger engine

PURPOSE:
  Defines the interface between domain logic and the database. The recurring
  engine depends on these interfaces only, never on a concrete store
  (capability-set polymorphism, constructor-injected).

KEY INTERFACES:
  AccountStore:     Account existence/ownership lookups
  CategoryStore:    Category existence/ownership/polarity lookups
  TransactionStore: Ledger transaction creation (one per executed occurrence)
  ScheduleStore:    Recurring schedule CRUD, due-schedule discovery

REFERENTIAL INTEGRITY:
  CreateTransaction must fail if the account or category no longer exists.
  The sqlite store enforces this with foreign keys; the memory store checks
  explicitly. This is what turns a dangling reference into a contained
  per-schedule failure during a batch sweep instead of silent garbage.

SOFT DELETE:
  DeleteSchedule marks the row deleted; every other ScheduleStore method
  behaves as if deleted rows do not exist.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for tests and dev

SEE ALSO:
  - recurring/service.go: The engine consuming these interfaces
*/
package ledger

import "context"

// =============================================================================
// REFERENCE DATA STORES
// =============================================================================

// AccountStore handles account persistence.
type AccountStore interface {
	// GetAccount returns the account or (nil, nil) when it does not exist.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	SaveAccount(ctx context.Context, account Account) error

	ListAccounts(ctx context.Context, workspaceID WorkspaceID) ([]Account, error)
}

// CategoryStore handles category persistence.
type CategoryStore interface {
	// GetCategory returns the category or (nil, nil) when it does not exist.
	GetCategory(ctx context.Context, id CategoryID) (*Category, error)

	SaveCategory(ctx context.Context, category Category) error

	ListCategories(ctx context.Context, workspaceID WorkspaceID) ([]Category, error)

	// DeleteCategory removes a category. Schedules referencing it start
	// failing at execution time and are surfaced by the sweep report.
	DeleteCategory(ctx context.Context, id CategoryID) error
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TransactionStore handles ledger transaction persistence.
type TransactionStore interface {
	// CreateTransaction persists one ledger entry. Fails when the
	// referenced account or category no longer exists.
	CreateTransaction(ctx context.Context, tx Transaction) error

	ListTransactions(ctx context.Context, workspaceID WorkspaceID, offset, limit int) ([]Transaction, error)
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

// ScheduleListFilter narrows ListByWorkspace results.
type ScheduleListFilter struct {
	// Active filters on the active flag when non-nil.
	Active *bool
	Offset int
	// Limit caps the page size; implementations default it to 100 when <= 0.
	Limit int
}

// ScheduleStore handles recurring schedule persistence.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s Schedule) error

	// GetSchedule returns the schedule or (nil, nil) when it does not exist
	// or is soft-deleted.
	GetSchedule(ctx context.Context, id ScheduleID) (*Schedule, error)

	// UpdateSchedule applies a patch and returns the updated schedule, or
	// (nil, nil) when the schedule does not exist or is soft-deleted.
	UpdateSchedule(ctx context.Context, id ScheduleID, patch SchedulePatch) (*Schedule, error)

	// DeleteSchedule soft-deletes. Returns false when nothing was deleted.
	DeleteSchedule(ctx context.Context, id ScheduleID) (bool, error)

	// ListByWorkspace returns a workspace's schedules ordered by NextDue.
	ListByWorkspace(ctx context.Context, workspaceID WorkspaceID, filter ScheduleListFilter) ([]Schedule, error)

	// ListDue returns a workspace's active schedules with NextDue <= asOf.
	ListDue(ctx context.Context, workspaceID WorkspaceID, asOf Date) ([]Schedule, error)

	// ListDueGlobal returns every active schedule across all workspaces with
	// NextDue <= asOf, ordered by workspace, then NextDue, then id, so batch
	// runs process deterministically.
	ListDueGlobal(ctx context.Context, asOf Date) ([]Schedule, error)
}

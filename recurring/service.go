/*
Package recurring implements the recurring transaction scheduling and
execution engine.

PURPOSE:
  Turns declarative recurrence rules ("charge $50 every 2nd of the month")
  into concrete ledger transactions, exactly once per due occurrence, across
  many workspaces, with safe catch-up after downtime and per-schedule
  failure isolation.

COMPONENTS:
  frequency.go  Pure date arithmetic (FirstDue / NextDueAfter)
  validate.go   Config and reference validation
  service.go    Schedule lifecycle + on-demand single execution (this file)
  sweep.go      Per-schedule backfill loop and the global batch orchestrator
  report.go     Batch-run report types

EXECUTION MODEL:
  Cooperative. A schedule becomes due only when something invokes the sweep
  or the on-demand trigger; there is no sub-second real-time guarantee.
  Within one call, idempotent progression is guaranteed by advancing the
  schedule cursor after each materialized transaction. There is no
  distributed locking: two concurrent orchestrators degrade to
  at-least-once. A concurrent manual execute racing a sweep on the same
  schedule can, in principle, duplicate one occurrence; both paths re-read
  the schedule before mutating, but true exactly-once there would need a
  version column with conditional updates.

SEE ALSO:
  - ledger/store.go: The repository interfaces this engine depends on
  - cmd/sweep: Cron entry point for the global sweep
*/
package recurring

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

// Stores bundles the repository interfaces the engine depends on.
type Stores struct {
	Schedules    ledger.ScheduleStore
	Transactions ledger.TransactionStore
	Accounts     ledger.AccountStore
	Categories   ledger.CategoryStore
}

// Service is the recurring transaction engine. All methods are safe for
// concurrent use as long as the underlying stores are.
type Service struct {
	schedules    ledger.ScheduleStore
	transactions ledger.TransactionStore
	accounts     ledger.AccountStore
	categories   ledger.CategoryStore

	// now is the single clock boundary. Tests inject a fixed clock.
	now func() time.Time
}

// NewService creates an engine on the given stores, using the system clock.
func NewService(stores Stores) *Service {
	return NewServiceWithClock(stores, time.Now)
}

// NewServiceWithClock creates an engine with an injected clock.
func NewServiceWithClock(stores Stores, now func() time.Time) *Service {
	return &Service{
		schedules:    stores.Schedules,
		transactions: stores.Transactions,
		accounts:     stores.Accounts,
		categories:   stores.Categories,
		now:          now,
	}
}

func (s *Service) today() ledger.Date {
	return ledger.DateOf(s.now())
}

// =============================================================================
// CREATE / READ
// =============================================================================

// CreateInput is the configuration for a new schedule.
type CreateInput struct {
	Kind        ledger.TransactionKind
	AccountID   ledger.AccountID
	CategoryID  ledger.CategoryID
	Amount      decimal.Decimal
	Description string

	Frequency  ledger.Frequency
	DayOfWeek  *int
	DayOfMonth *int

	StartDate ledger.Date
	EndDate   *ledger.Date
}

// Create validates the configuration and persists a new active schedule
// with its first due date computed from the start date.
func (s *Service) Create(ctx context.Context, workspaceID ledger.WorkspaceID, actorID ledger.UserID, input CreateInput) (*ledger.Schedule, error) {
	if input.Kind == ledger.KindTransfer {
		return nil, ledger.ErrTransferNotAllowed
	}
	if !input.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ledger.ErrInvalidConfiguration, input.Kind)
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if err := s.validateAccount(ctx, workspaceID, input.AccountID); err != nil {
		return nil, err
	}
	if err := s.validateCategory(ctx, workspaceID, input.CategoryID, input.Kind); err != nil {
		return nil, err
	}
	if err := validateFrequencyConfig(input.Frequency, input.DayOfWeek, input.DayOfMonth); err != nil {
		return nil, err
	}

	nextDue := FirstDue(input.Frequency, input.DayOfWeek, input.DayOfMonth, input.StartDate, s.today())

	schedule := ledger.Schedule{
		ID:          ledger.ScheduleID(uuid.NewString()),
		WorkspaceID: workspaceID,
		UserID:      actorID,
		Kind:        input.Kind,
		AccountID:   input.AccountID,
		CategoryID:  input.CategoryID,
		Amount:      input.Amount,
		Description: input.Description,
		Frequency:   input.Frequency,
		DayOfWeek:   input.DayOfWeek,
		DayOfMonth:  input.DayOfMonth,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		NextDue:     nextDue,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.schedules.CreateSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("creating schedule: %w", err)
	}

	log.Printf("[Recurring] Created schedule %s for workspace %s by user %s (next due %s)",
		schedule.ID, workspaceID, actorID, nextDue)
	return &schedule, nil
}

// Get returns a schedule, enforcing workspace scope. Cross-workspace access
// is reported as not found, never as forbidden, to avoid leaking existence.
func (s *Service) Get(ctx context.Context, id ledger.ScheduleID, workspaceID ledger.WorkspaceID) (*ledger.Schedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading schedule %s: %w", id, err)
	}
	if schedule == nil || schedule.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("%w: %s", ledger.ErrScheduleNotFound, id)
	}
	return schedule, nil
}

// ListForWorkspace returns a workspace's schedules, optionally filtered by
// the active flag, paginated.
func (s *Service) ListForWorkspace(ctx context.Context, workspaceID ledger.WorkspaceID, filter ledger.ScheduleListFilter) ([]ledger.Schedule, error) {
	return s.schedules.ListByWorkspace(ctx, workspaceID, filter)
}

// ListPending returns the workspace's schedules due on or before asOf.
// A nil asOf means today.
func (s *Service) ListPending(ctx context.Context, workspaceID ledger.WorkspaceID, asOf *ledger.Date) ([]ledger.Schedule, error) {
	checkDate := s.today()
	if asOf != nil {
		checkDate = *asOf
	}
	return s.schedules.ListDue(ctx, workspaceID, checkDate)
}

// =============================================================================
// UPDATE / DELETE / ACTIVATION
// =============================================================================

// UpdateInput is a partial schedule update. Nil fields are left unchanged.
type UpdateInput struct {
	Amount      *decimal.Decimal
	Description *string
	CategoryID  *ledger.CategoryID

	Frequency  *ledger.Frequency
	DayOfWeek  *int
	DayOfMonth *int

	EndDate *ledger.Date
	Active  *bool
}

// Update applies a partial update. Changing the category re-validates it
// against the schedule's kind; changing any recurrence field re-validates
// the combination and recomputes the cursor anchored on today.
func (s *Service) Update(ctx context.Context, id ledger.ScheduleID, workspaceID ledger.WorkspaceID, input UpdateInput) (*ledger.Schedule, error) {
	schedule, err := s.Get(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}

	if input.Amount != nil {
		if err := validateAmount(*input.Amount); err != nil {
			return nil, err
		}
	}
	if input.CategoryID != nil {
		if err := s.validateCategory(ctx, workspaceID, *input.CategoryID, schedule.Kind); err != nil {
			return nil, err
		}
	}

	patch := ledger.SchedulePatch{
		Amount:      input.Amount,
		Description: input.Description,
		CategoryID:  input.CategoryID,
		Frequency:   input.Frequency,
		DayOfWeek:   input.DayOfWeek,
		DayOfMonth:  input.DayOfMonth,
		EndDate:     input.EndDate,
		Active:      input.Active,
	}

	if input.Frequency != nil || input.DayOfWeek != nil || input.DayOfMonth != nil {
		freq := schedule.Frequency
		if input.Frequency != nil {
			freq = *input.Frequency
		}
		dow := schedule.DayOfWeek
		if input.DayOfWeek != nil {
			dow = input.DayOfWeek
		}
		dom := schedule.DayOfMonth
		if input.DayOfMonth != nil {
			dom = input.DayOfMonth
		}
		if err := validateFrequencyConfig(freq, dow, dom); err != nil {
			return nil, err
		}

		// The recurrence changed under the cursor: recompute it anchored on
		// today, the same way activation does.
		nextDue := FirstDue(freq, dow, dom, s.today(), s.today())
		patch.NextDue = &nextDue
	}

	updated, err := s.schedules.UpdateSchedule(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("updating schedule %s: %w", id, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrScheduleNotFound, id)
	}

	log.Printf("[Recurring] Updated schedule %s", id)
	return updated, nil
}

// Delete soft-deletes a schedule. Independent of the active flag.
func (s *Service) Delete(ctx context.Context, id ledger.ScheduleID, workspaceID ledger.WorkspaceID) error {
	if _, err := s.Get(ctx, id, workspaceID); err != nil {
		return err
	}
	deleted, err := s.schedules.DeleteSchedule(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting schedule %s: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ledger.ErrScheduleNotFound, id)
	}
	log.Printf("[Recurring] Deleted schedule %s", id)
	return nil
}

// Deactivate turns a schedule off. Always permitted.
func (s *Service) Deactivate(ctx context.Context, id ledger.ScheduleID, workspaceID ledger.WorkspaceID) (*ledger.Schedule, error) {
	if _, err := s.Get(ctx, id, workspaceID); err != nil {
		return nil, err
	}
	active := false
	updated, err := s.schedules.UpdateSchedule(ctx, id, ledger.SchedulePatch{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("deactivating schedule %s: %w", id, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrScheduleNotFound, id)
	}
	log.Printf("[Recurring] Deactivated schedule %s", id)
	return updated, nil
}

// Activate turns a schedule back on, recomputing the cursor anchored on
// today. Rejected once the end date has passed.
func (s *Service) Activate(ctx context.Context, id ledger.ScheduleID, workspaceID ledger.WorkspaceID) (*ledger.Schedule, error) {
	schedule, err := s.Get(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}
	if schedule.Expired(s.today()) {
		return nil, ledger.ErrScheduleExpired
	}

	nextDue := FirstDue(schedule.Frequency, schedule.DayOfWeek, schedule.DayOfMonth, s.today(), s.today())
	active := true
	updated, err := s.schedules.UpdateSchedule(ctx, id, ledger.SchedulePatch{
		Active:  &active,
		NextDue: &nextDue,
	})
	if err != nil {
		return nil, fmt.Errorf("activating schedule %s: %w", id, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrScheduleNotFound, id)
	}
	log.Printf("[Recurring] Activated schedule %s (next due %s)", id, nextDue)
	return updated, nil
}

// =============================================================================
// ON-DEMAND TRIGGER - Manual single execution
// =============================================================================

// ExecuteOnce materializes one occurrence of a schedule right now.
//
// The occurrence is anchored on max(NextDue, today): manual execution never
// back-dates a transaction, and never catches up missed periods (only the
// sweep does). When the end date has already passed, the schedule is
// deactivated AND the call fails with ErrScheduleExpired; callers must not
// assume this failure path is side-effect-free.
func (s *Service) ExecuteOnce(ctx context.Context, id ledger.ScheduleID, workspaceID ledger.WorkspaceID) (*ledger.Transaction, error) {
	schedule, err := s.Get(ctx, id, workspaceID)
	if err != nil {
		return nil, err
	}

	if !schedule.Active {
		return nil, ledger.ErrScheduleInactive
	}
	if schedule.Expired(s.today()) {
		active := false
		if _, err := s.schedules.UpdateSchedule(ctx, id, ledger.SchedulePatch{Active: &active}); err != nil {
			return nil, fmt.Errorf("deactivating expired schedule %s: %w", id, err)
		}
		return nil, ledger.ErrScheduleExpired
	}

	tx, err := s.createTransactionFrom(ctx, schedule)
	if err != nil {
		return nil, err
	}

	anchor := ledger.MaxDate(schedule.NextDue, s.today())
	nextDue := NextDueAfter(schedule.Frequency, schedule.DayOfWeek, schedule.DayOfMonth, anchor)

	active := true
	if schedule.EndDate != nil && nextDue.After(*schedule.EndDate) {
		active = false
	}

	executedAt := s.now().UTC()
	if _, err := s.schedules.UpdateSchedule(ctx, id, ledger.SchedulePatch{
		NextDue:        &nextDue,
		LastExecutedAt: &executedAt,
		Active:         &active,
	}); err != nil {
		return nil, fmt.Errorf("advancing cursor for schedule %s: %w", id, err)
	}

	log.Printf("[Recurring] Executed schedule %s, created transaction %s", id, tx.ID)
	return tx, nil
}

// createTransactionFrom materializes one ledger transaction from a
// schedule, stamped with "now" and back-referencing the schedule.
func (s *Service) createTransactionFrom(ctx context.Context, schedule *ledger.Schedule) (*ledger.Transaction, error) {
	now := s.now().UTC()
	tx := ledger.Transaction{
		ID:          ledger.TransactionID(uuid.NewString()),
		WorkspaceID: schedule.WorkspaceID,
		UserID:      schedule.UserID,
		Kind:        schedule.Kind,
		AccountID:   schedule.AccountID,
		CategoryID:  schedule.CategoryID,
		Amount:      schedule.Amount,
		Description: schedule.Description,
		OccurredAt:  now,
		ScheduleID:  schedule.ID,
		CreatedAt:   now,
	}
	if err := s.transactions.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("materializing transaction for schedule %s: %w", schedule.ID, err)
	}
	return &tx, nil
}

/*
schedule.go - The recurring schedule record

PURPOSE:
  RecurringSchedule is the declarative rule ("charge $50 every 2nd of the
  month") that the recurring engine turns into ledger transactions. This
  file defines the record and its patch type; the state machine that drives
  it lives in the recurring package.

LIFECYCLE:
  created active, NextDue computed from StartDate
    -> updated (recurrence changes recompute NextDue from "today")
    -> deactivated automatically when an occurrence would pass EndDate
    -> reactivated explicitly (rejected once EndDate has passed)
    -> soft-deleted independently of the active flag

CURSOR INVARIANT:
  NextDue is always >= StartDate and, while the schedule is active, is the
  earliest occurrence not yet materialized. Every executed occurrence
  advances it by exactly one recurrence step.

SEE ALSO:
  - recurring/frequency.go: How NextDue is computed
  - recurring/sweep.go: How the cursor is advanced during catch-up
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FREQUENCY
// =============================================================================

// Frequency is the recurrence class of a schedule.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// =============================================================================
// SCHEDULE - Recurring transaction rule
// =============================================================================

// Schedule is a recurring transaction rule. Kind is income or expense only;
// transfers are never permitted for schedules.
type Schedule struct {
	ID          ScheduleID
	WorkspaceID WorkspaceID
	UserID      UserID

	Kind        TransactionKind
	AccountID   AccountID
	CategoryID  CategoryID
	Amount      decimal.Decimal
	Description string

	Frequency Frequency
	// DayOfWeek is required for weekly schedules. 0 = Monday .. 6 = Sunday.
	DayOfWeek *int
	// DayOfMonth is required for monthly schedules, 1-31. Values above 28
	// are clamped to 28 during date arithmetic so every month is valid.
	DayOfMonth *int

	StartDate Date
	// EndDate is inclusive: the last day an occurrence may fall on.
	EndDate *Date

	// NextDue is the cursor: the date of the next occurrence that has not
	// been materialized yet.
	NextDue        Date
	LastExecutedAt *time.Time
	Active         bool

	CreatedAt time.Time
	DeletedAt *time.Time
}

// Expired reports whether the schedule's end date has passed as of today.
func (s *Schedule) Expired(today Date) bool {
	return s.EndDate != nil && s.EndDate.Before(today)
}

// =============================================================================
// PATCH - Partial update, nil means "leave unchanged"
// =============================================================================

// SchedulePatch is a partial update to a schedule. Nil fields are left
// unchanged. Used both by user-facing updates (amount, category, recurrence)
// and by the engine itself (cursor, active flag, last-executed stamp).
type SchedulePatch struct {
	Amount      *decimal.Decimal
	Description *string
	CategoryID  *CategoryID

	Frequency  *Frequency
	DayOfWeek  *int
	DayOfMonth *int

	EndDate *Date

	NextDue        *Date
	LastExecutedAt *time.Time
	Active         *bool
}

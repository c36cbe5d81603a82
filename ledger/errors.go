/*
errors.go - Centralized error kinds for the ledger engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Other packages wrap these with additional context via fmt.Errorf("%w").

ERROR CATEGORIES:
  1. Not-found errors  - Missing or out-of-workspace references
  2. Validation errors - Business rule violations (abort the mutation)
  3. State errors      - Schedule lifecycle violations (inactive, expired)

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, ledger.ErrScheduleExpired) {
        // the failed execute also deactivated the schedule
    }

SEE ALSO:
  - recurring/validate.go: Raises the validation errors
  - api/handlers.go: Maps these kinds to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrScheduleNotFound is returned when a recurring schedule does not
	// exist, is soft-deleted, or belongs to a different workspace.
	ErrScheduleNotFound = errors.New("recurring schedule not found")

	// ErrAccountNotFound is returned when a referenced account does not
	// exist or belongs to a different workspace.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCategoryNotFound is returned when a referenced category does not
	// exist or belongs to a different workspace.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrTransactionNotFound is returned when a ledger transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAccessDenied is returned for cross-workspace references that must
	// be reported as forbidden rather than missing.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidConfiguration is returned for inconsistent recurrence
	// configuration: weekly without a day-of-week, monthly without a
	// day-of-month, a non-positive amount, or a category polarity that does
	// not match the schedule kind.
	ErrInvalidConfiguration = errors.New("invalid recurrence configuration")

	// ErrTransferNotAllowed is returned when a schedule is created with the
	// transfer kind. Recurring transfers are not supported.
	ErrTransferNotAllowed = errors.New("recurring transfers are not supported")

	// ErrScheduleInactive is returned by on-demand execution when the
	// schedule has been deactivated.
	ErrScheduleInactive = errors.New("recurring schedule is inactive")

	// ErrScheduleExpired is returned when the schedule's end date has
	// passed. The failing call may have deactivated the schedule as a side
	// effect; this failure path is NOT side-effect-free.
	ErrScheduleExpired = errors.New("recurring schedule has expired")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CategoryKindMismatchError reports a category whose polarity does not match
// the schedule's transaction kind.
type CategoryKindMismatchError struct {
	CategoryID   CategoryID
	CategoryKind CategoryKind
	WantKind     TransactionKind
}

func (e *CategoryKindMismatchError) Error() string {
	return fmt.Sprintf("category %s has kind %q, want a %q category",
		e.CategoryID, e.CategoryKind, e.WantKind)
}

func (e *CategoryKindMismatchError) Unwrap() error {
	return ErrInvalidConfiguration
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsClientError returns true if the error is due to invalid client input or
// schedule state, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrTransferNotAllowed) ||
		errors.Is(err, ErrScheduleInactive) ||
		errors.Is(err, ErrScheduleExpired)
}

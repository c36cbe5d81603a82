/*
validate.go - Schedule configuration and reference validation

PURPOSE:
  Checks a recurrence configuration's internal consistency and its account/
  category references against workspace-scoped data. Invoked on create, and
  on update whenever the relevant fields change. Validation failures abort
  the mutation entirely; no partial writes.

ERROR MAPPING:
  - weekly without day-of-week / monthly without day-of-month, out-of-range
    days, non-positive amounts      -> ledger.ErrInvalidConfiguration
  - missing or cross-workspace refs -> ledger.ErrAccountNotFound /
                                       ledger.ErrCategoryNotFound
  - category polarity mismatch      -> ledger.CategoryKindMismatchError
                                       (unwraps to ErrInvalidConfiguration)

SEE ALSO:
  - ledger/errors.go: The error kinds raised here
  - service.go: Call sites
*/
package recurring

import (
	"context"
	"fmt"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/shopspring/decimal"
)

// validateFrequencyConfig checks that the recurrence class carries the day
// field it needs and that day values are in range.
func validateFrequencyConfig(freq ledger.Frequency, dayOfWeek, dayOfMonth *int) error {
	if !freq.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ledger.ErrInvalidConfiguration, freq)
	}
	if dayOfWeek != nil && (*dayOfWeek < 0 || *dayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week %d out of range 0-6", ledger.ErrInvalidConfiguration, *dayOfWeek)
	}
	if dayOfMonth != nil && (*dayOfMonth < 1 || *dayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month %d out of range 1-31", ledger.ErrInvalidConfiguration, *dayOfMonth)
	}
	if freq == ledger.FrequencyWeekly && dayOfWeek == nil {
		return fmt.Errorf("%w: weekly schedules require day_of_week", ledger.ErrInvalidConfiguration)
	}
	if freq == ledger.FrequencyMonthly && dayOfMonth == nil {
		return fmt.Errorf("%w: monthly schedules require day_of_month", ledger.ErrInvalidConfiguration)
	}
	return nil
}

// validateAmount rejects zero and negative amounts.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ledger.ErrInvalidConfiguration, amount)
	}
	return nil
}

// validateAccount checks that the account exists and belongs to the workspace.
func (s *Service) validateAccount(ctx context.Context, workspaceID ledger.WorkspaceID, accountID ledger.AccountID) error {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("looking up account %s: %w", accountID, err)
	}
	if account == nil || account.WorkspaceID != workspaceID {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, accountID)
	}
	return nil
}

// validateCategory checks that the category exists, belongs to the
// workspace, and that its polarity matches the schedule kind.
func (s *Service) validateCategory(ctx context.Context, workspaceID ledger.WorkspaceID, categoryID ledger.CategoryID, kind ledger.TransactionKind) error {
	category, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("looking up category %s: %w", categoryID, err)
	}
	if category == nil || category.WorkspaceID != workspaceID {
		return fmt.Errorf("%w: %s", ledger.ErrCategoryNotFound, categoryID)
	}
	if !category.Kind.Matches(kind) {
		return &ledger.CategoryKindMismatchError{
			CategoryID:   categoryID,
			CategoryKind: category.Kind,
			WantKind:     kind,
		}
	}
	return nil
}

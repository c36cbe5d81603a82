/*
Package ledger provides the core finance-ledger types and storage interfaces.

PURPOSE:
  This package contains the domain vocabulary shared by every other package:
  workspaces (tenants), accounts, categories, ledger transactions, and the
  repository interfaces the engine depends on. It has no I/O of its own.

KEY CONCEPTS IN THIS FILE (types.go):
  - TransactionKind: income | expense | transfer
  - CategoryKind: income | expense (a category's polarity)
  - Account/Category: workspace-scoped reference data
  - Transaction: a materialized ledger entry, optionally back-referencing
    the recurring schedule that produced it

DESIGN PRINCIPLES:
  1. Precision: amounts use decimal.Decimal, never float64
  2. Type safety: distinct ID types prevent mixing workspace/account/category IDs
  3. Multi-tenancy: every record carries its WorkspaceID; cross-workspace
     references are rejected at validation time

SEE ALSO:
  - store.go: Repository interfaces over these types
  - errors.go: Error kinds shared across the system
  - recurring/: The scheduling engine built on top of this package
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkspaceID string
type UserID string
type AccountID string
type CategoryID string
type TransactionID string
type ScheduleID string

// =============================================================================
// KINDS
// =============================================================================

// TransactionKind is the direction of a ledger transaction.
type TransactionKind string

const (
	KindIncome   TransactionKind = "income"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
)

func (k TransactionKind) Valid() bool {
	return k == KindIncome || k == KindExpense || k == KindTransfer
}

// CategoryKind is a category's polarity. Transfers have no category,
// so there is no transfer polarity.
type CategoryKind string

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

// Matches reports whether a category of this polarity can classify a
// transaction of the given kind.
func (k CategoryKind) Matches(kind TransactionKind) bool {
	switch kind {
	case KindIncome:
		return k == CategoryIncome
	case KindExpense:
		return k == CategoryExpense
	default:
		return false
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Account is a money account inside a workspace.
type Account struct {
	ID          AccountID
	WorkspaceID WorkspaceID
	Name        string
	Currency    string
	CreatedAt   time.Time
}

// Category classifies transactions and carries an income/expense polarity.
type Category struct {
	ID          CategoryID
	WorkspaceID WorkspaceID
	Name        string
	Kind        CategoryKind
	CreatedAt   time.Time
}

// =============================================================================
// TRANSACTION - Materialized ledger entry
// =============================================================================

// Transaction is one ledger entry. Entries produced by the recurring engine
// carry the originating ScheduleID and are never mutated afterwards.
type Transaction struct {
	ID          TransactionID
	WorkspaceID WorkspaceID
	UserID      UserID
	Kind        TransactionKind
	AccountID   AccountID
	CategoryID  CategoryID
	Amount      decimal.Decimal
	Description string
	OccurredAt  time.Time

	// ScheduleID links back to the recurring schedule that produced this
	// entry. Empty for manually entered transactions.
	ScheduleID ScheduleID

	CreatedAt time.Time
}

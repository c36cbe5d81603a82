/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements AccountStore, CategoryStore, TransactionStore and ScheduleStore
  over SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  accounts:            Workspace-scoped money accounts
  categories:          Workspace-scoped categories with polarity
  transactions:        Materialized ledger entries (schedule back-reference)
  recurring_schedules: Recurrence rules with the next_due cursor

REFERENTIAL INTEGRITY:
  Foreign keys are ON. Deleting a category makes CreateTransaction fail for
  schedules still pointing at it; the sweep orchestrator contains that
  failure per schedule instead of aborting the batch.

SOFT DELETE:
  recurring_schedules carries deleted_at; every query filters it. Deleted
  schedules keep their rows so old transactions retain a valid back-reference.

INDEXES:
  idx_schedules_due is the batch discovery hot path
  (active, next_due over non-deleted rows).

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements all ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_workspace
		ON accounts(workspace_id);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_workspace
		ON categories(workspace_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		category_id TEXT NOT NULL REFERENCES categories(id),
		amount TEXT NOT NULL,
		description TEXT,
		occurred_at TEXT NOT NULL,
		schedule_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_workspace_date
		ON transactions(workspace_id, occurred_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_schedule
		ON transactions(schedule_id) WHERE schedule_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS recurring_schedules (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		account_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		frequency TEXT NOT NULL,
		day_of_week INTEGER,
		day_of_month INTEGER,
		start_date TEXT NOT NULL,
		end_date TEXT,
		next_due TEXT NOT NULL,
		last_executed_at TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		deleted_at TEXT
	);

	-- Batch discovery hot path: active schedules with next_due <= as_of.
	CREATE INDEX IF NOT EXISTS idx_schedules_due
		ON recurring_schedules(active, next_due) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_schedules_workspace
		ON recurring_schedules(workspace_id) WHERE deleted_at IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset drops all rows. For tests and dev only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transactions", "recurring_schedules", "categories", "accounts"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, workspace_id, name, currency, created_at FROM accounts WHERE id = ?", id)

	var a ledger.Account
	var createdAt string
	if err := row.Scan(&a.ID, &a.WorkspaceID, &a.Name, &a.Currency, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func (s *Store) SaveAccount(ctx context.Context, account ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, workspace_id, name, currency, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, currency = excluded.currency`,
		account.ID, account.WorkspaceID, account.Name, account.Currency,
		createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, workspaceID ledger.WorkspaceID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, workspace_id, name, currency, created_at FROM accounts WHERE workspace_id = ? ORDER BY id",
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		var createdAt string
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.Name, &a.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// =============================================================================
// CATEGORY STORE
// =============================================================================

func (s *Store) GetCategory(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, workspace_id, name, kind, created_at FROM categories WHERE id = ?", id)

	var c ledger.Category
	var createdAt string
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Kind, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) SaveCategory(ctx context.Context, category ledger.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := category.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, workspace_id, name, kind, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, kind = excluded.kind`,
		category.ID, category.WorkspaceID, category.Name, category.Kind,
		createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, workspaceID ledger.WorkspaceID) ([]ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, workspace_id, name, kind, created_at FROM categories WHERE workspace_id = ? ORDER BY id",
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []ledger.Category
	for rows.Next() {
		var c ledger.Category
		var createdAt string
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Kind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) DeleteCategory(ctx context.Context, id ledger.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (s *Store) CreateTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, workspace_id, user_id, kind, account_id, category_id, amount,
		 description, occurred_at, schedule_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.WorkspaceID, tx.UserID, tx.Kind, tx.AccountID, tx.CategoryID,
		tx.Amount.String(), nullString(tx.Description),
		tx.OccurredAt.UTC().Format(time.RFC3339),
		nullString(string(tx.ScheduleID)),
		tx.CreatedAt.UTC().Format(time.RFC3339))

	if err != nil {
		if isForeignKeyError(err) {
			return s.classifyMissingReference(ctx, tx)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// classifyMissingReference turns an anonymous FK failure into the specific
// not-found error the sweep report should carry.
func (s *Store) classifyMissingReference(ctx context.Context, tx ledger.Transaction) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE id = ?", tx.AccountID).Scan(&count); err == nil && count == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, tx.AccountID)
	}
	return fmt.Errorf("%w: %s", ledger.ErrCategoryNotFound, tx.CategoryID)
}

func (s *Store) ListTransactions(ctx context.Context, workspaceID ledger.WorkspaceID, offset, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, user_id, kind, account_id, category_id, amount,
		       description, occurred_at, schedule_id, created_at
		FROM transactions
		WHERE workspace_id = ?
		ORDER BY occurred_at DESC, id
		LIMIT ? OFFSET ?`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx          ledger.Transaction
		amount      string
		description sql.NullString
		occurredAt  string
		scheduleID  sql.NullString
		createdAt   string
	)

	err := rows.Scan(&tx.ID, &tx.WorkspaceID, &tx.UserID, &tx.Kind,
		&tx.AccountID, &tx.CategoryID, &amount, &description,
		&occurredAt, &scheduleID, &createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount = mustDecimal(amount)
	tx.Description = description.String
	tx.OccurredAt = parseTime(occurredAt)
	tx.ScheduleID = ledger.ScheduleID(scheduleID.String)
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

const scheduleColumns = `id, workspace_id, user_id, kind, account_id, category_id,
	amount, description, frequency, day_of_week, day_of_month,
	start_date, end_date, next_due, last_executed_at, active, created_at`

func (s *Store) CreateSchedule(ctx context.Context, sched ledger.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_schedules
		(id, workspace_id, user_id, kind, account_id, category_id, amount,
		 description, frequency, day_of_week, day_of_month, start_date,
		 end_date, next_due, last_executed_at, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.WorkspaceID, sched.UserID, sched.Kind,
		sched.AccountID, sched.CategoryID, sched.Amount.String(),
		nullString(sched.Description), sched.Frequency,
		nullInt(sched.DayOfWeek), nullInt(sched.DayOfMonth),
		sched.StartDate.String(), nullDate(sched.EndDate),
		sched.NextDue.String(), nullTime(sched.LastExecutedAt),
		sched.Active, sched.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id ledger.ScheduleID) (*ledger.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getSchedule(ctx, id)
}

func (s *Store) getSchedule(ctx context.Context, id ledger.ScheduleID) (*ledger.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM recurring_schedules WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	sched, err := scanSchedule(rows)
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, id ledger.ScheduleID, patch ledger.SchedulePatch) (*ledger.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Amount != nil {
		add("amount", patch.Amount.String())
	}
	if patch.Description != nil {
		add("description", nullString(*patch.Description))
	}
	if patch.CategoryID != nil {
		add("category_id", *patch.CategoryID)
	}
	if patch.Frequency != nil {
		add("frequency", *patch.Frequency)
	}
	if patch.DayOfWeek != nil {
		add("day_of_week", *patch.DayOfWeek)
	}
	if patch.DayOfMonth != nil {
		add("day_of_month", *patch.DayOfMonth)
	}
	if patch.EndDate != nil {
		add("end_date", patch.EndDate.String())
	}
	if patch.NextDue != nil {
		add("next_due", patch.NextDue.String())
	}
	if patch.LastExecutedAt != nil {
		add("last_executed_at", patch.LastExecutedAt.UTC().Format(time.RFC3339))
	}
	if patch.Active != nil {
		add("active", *patch.Active)
	}

	if len(sets) > 0 {
		args = append(args, id)
		result, err := s.db.ExecContext(ctx,
			"UPDATE recurring_schedules SET "+strings.Join(sets, ", ")+" WHERE id = ? AND deleted_at IS NULL",
			args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update schedule: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return nil, nil
		}
	}

	return s.getSchedule(ctx, id)
}

func (s *Store) DeleteSchedule(ctx context.Context, id ledger.ScheduleID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE recurring_schedules SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListByWorkspace(ctx context.Context, workspaceID ledger.WorkspaceID, filter ledger.ScheduleListFilter) ([]ledger.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + scheduleColumns + ` FROM recurring_schedules
		WHERE workspace_id = ? AND deleted_at IS NULL`
	args := []any{workspaceID}
	if filter.Active != nil {
		query += " AND active = ?"
		args = append(args, *filter.Active)
	}
	query += " ORDER BY next_due, id LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	return s.querySchedules(ctx, query, args...)
}

func (s *Store) ListDue(ctx context.Context, workspaceID ledger.WorkspaceID, asOf ledger.Date) ([]ledger.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + scheduleColumns + ` FROM recurring_schedules
		WHERE workspace_id = ? AND deleted_at IS NULL AND active = TRUE AND next_due <= ?
		ORDER BY next_due, id`
	return s.querySchedules(ctx, query, workspaceID, asOf.String())
}

func (s *Store) ListDueGlobal(ctx context.Context, asOf ledger.Date) ([]ledger.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + scheduleColumns + ` FROM recurring_schedules
		WHERE deleted_at IS NULL AND active = TRUE AND next_due <= ?
		ORDER BY workspace_id, next_due, id`
	return s.querySchedules(ctx, query, asOf.String())
}

func (s *Store) querySchedules(ctx context.Context, query string, args ...any) ([]ledger.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []ledger.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

func scanSchedule(rows *sql.Rows) (ledger.Schedule, error) {
	var (
		sched          ledger.Schedule
		amount         string
		description    sql.NullString
		dayOfWeek      sql.NullInt64
		dayOfMonth     sql.NullInt64
		startDate      string
		endDate        sql.NullString
		nextDue        string
		lastExecutedAt sql.NullString
		createdAt      string
	)

	err := rows.Scan(&sched.ID, &sched.WorkspaceID, &sched.UserID, &sched.Kind,
		&sched.AccountID, &sched.CategoryID, &amount, &description,
		&sched.Frequency, &dayOfWeek, &dayOfMonth, &startDate, &endDate,
		&nextDue, &lastExecutedAt, &sched.Active, &createdAt)
	if err != nil {
		return sched, fmt.Errorf("failed to scan schedule: %w", err)
	}

	sched.Amount = mustDecimal(amount)
	sched.Description = description.String
	if dayOfWeek.Valid {
		v := int(dayOfWeek.Int64)
		sched.DayOfWeek = &v
	}
	if dayOfMonth.Valid {
		v := int(dayOfMonth.Int64)
		sched.DayOfMonth = &v
	}
	sched.StartDate = parseDate(startDate)
	if endDate.Valid {
		d := parseDate(endDate.String)
		sched.EndDate = &d
	}
	sched.NextDue = parseDate(nextDue)
	if lastExecutedAt.Valid {
		t := parseTime(lastExecutedAt.String)
		sched.LastExecutedAt = &t
	}
	sched.CreatedAt = parseTime(createdAt)
	return sched, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullDate(d *ledger.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDate(s string) ledger.Date {
	d, _ := ledger.ParseDate(s)
	return d
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

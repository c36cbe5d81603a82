// Package memory provides in-memory implementations of the ledger storage
// interfaces, for tests and the dev server.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - Implements every ledger store interface
// =============================================================================

// Store keeps everything in maps behind one RWMutex. Referential integrity
// on transaction insert is checked explicitly, standing in for the foreign
// keys the sqlite store gets from the database.
type Store struct {
	mu           sync.RWMutex
	accounts     map[ledger.AccountID]ledger.Account
	categories   map[ledger.CategoryID]ledger.Category
	transactions []ledger.Transaction
	schedules    map[ledger.ScheduleID]ledger.Schedule
}

func New() *Store {
	return &Store{
		accounts:   make(map[ledger.AccountID]ledger.Account),
		categories: make(map[ledger.CategoryID]ledger.Category),
		schedules:  make(map[ledger.ScheduleID]ledger.Schedule),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Store) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[id]; ok {
		cp := a
		return &cp, nil
	}
	return nil, nil
}

func (m *Store) SaveAccount(_ context.Context, account ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *Store) ListAccounts(_ context.Context, workspaceID ledger.WorkspaceID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.Account
	for _, a := range m.accounts {
		if a.WorkspaceID == workspaceID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (m *Store) GetCategory(_ context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.categories[id]; ok {
		cp := c
		return &cp, nil
	}
	return nil, nil
}

func (m *Store) SaveCategory(_ context.Context, category ledger.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[category.ID] = category
	return nil
}

func (m *Store) ListCategories(_ context.Context, workspaceID ledger.WorkspaceID) ([]ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.Category
	for _, c := range m.categories {
		if c.WorkspaceID == workspaceID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Store) DeleteCategory(_ context.Context, id ledger.CategoryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.categories, id)
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Store) CreateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same failure mode as the sqlite foreign keys.
	if _, ok := m.accounts[tx.AccountID]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, tx.AccountID)
	}
	if _, ok := m.categories[tx.CategoryID]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrCategoryNotFound, tx.CategoryID)
	}

	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *Store) ListTransactions(_ context.Context, workspaceID ledger.WorkspaceID, offset, limit int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var all []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.WorkspaceID == workspaceID {
			all = append(all, tx)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OccurredAt.After(all[j].OccurredAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	result := make([]ledger.Transaction, end-offset)
	copy(result, all[offset:end])
	return result, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (m *Store) CreateSchedule(_ context.Context, s ledger.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s
	return nil
}

func (m *Store) GetSchedule(_ context.Context, id ledger.ScheduleID) (*ledger.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok || s.DeletedAt != nil {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *Store) UpdateSchedule(_ context.Context, id ledger.ScheduleID, patch ledger.SchedulePatch) (*ledger.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[id]
	if !ok || s.DeletedAt != nil {
		return nil, nil
	}

	if patch.Amount != nil {
		s.Amount = *patch.Amount
	}
	if patch.Description != nil {
		s.Description = *patch.Description
	}
	if patch.CategoryID != nil {
		s.CategoryID = *patch.CategoryID
	}
	if patch.Frequency != nil {
		s.Frequency = *patch.Frequency
	}
	if patch.DayOfWeek != nil {
		s.DayOfWeek = patch.DayOfWeek
	}
	if patch.DayOfMonth != nil {
		s.DayOfMonth = patch.DayOfMonth
	}
	if patch.EndDate != nil {
		s.EndDate = patch.EndDate
	}
	if patch.NextDue != nil {
		s.NextDue = *patch.NextDue
	}
	if patch.LastExecutedAt != nil {
		s.LastExecutedAt = patch.LastExecutedAt
	}
	if patch.Active != nil {
		s.Active = *patch.Active
	}

	m.schedules[id] = s
	cp := s
	return &cp, nil
}

func (m *Store) DeleteSchedule(_ context.Context, id ledger.ScheduleID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[id]
	if !ok || s.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	s.DeletedAt = &now
	m.schedules[id] = s
	return true, nil
}

func (m *Store) ListByWorkspace(_ context.Context, workspaceID ledger.WorkspaceID, filter ledger.ScheduleListFilter) ([]ledger.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var all []ledger.Schedule
	for _, s := range m.schedules {
		if s.DeletedAt != nil || s.WorkspaceID != workspaceID {
			continue
		}
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].NextDue.Equal(all[j].NextDue) {
			return all[i].NextDue.Before(all[j].NextDue)
		}
		return all[i].ID < all[j].ID
	})

	if filter.Offset >= len(all) {
		return nil, nil
	}
	end := filter.Offset + limit
	if end > len(all) {
		end = len(all)
	}
	result := make([]ledger.Schedule, end-filter.Offset)
	copy(result, all[filter.Offset:end])
	return result, nil
}

func (m *Store) ListDue(_ context.Context, workspaceID ledger.WorkspaceID, asOf ledger.Date) ([]ledger.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Schedule
	for _, s := range m.schedules {
		if s.DeletedAt == nil && s.WorkspaceID == workspaceID && s.Active && s.NextDue.BeforeOrEqual(asOf) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].NextDue.Equal(result[j].NextDue) {
			return result[i].NextDue.Before(result[j].NextDue)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Store) ListDueGlobal(_ context.Context, asOf ledger.Date) ([]ledger.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Schedule
	for _, s := range m.schedules {
		if s.DeletedAt == nil && s.Active && s.NextDue.BeforeOrEqual(asOf) {
			result = append(result, s)
		}
	}
	// Deterministic batch order: workspace, then due date, then id.
	sort.Slice(result, func(i, j int) bool {
		if result[i].WorkspaceID != result[j].WorkspaceID {
			return result[i].WorkspaceID < result[j].WorkspaceID
		}
		if !result[i].NextDue.Equal(result[j].NextDue) {
			return result[i].NextDue.Before(result[j].NextDue)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

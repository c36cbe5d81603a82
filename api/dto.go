/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Calendar dates (start_date, end_date, next_due, as_of) travel as
  YYYY-MM-DD strings; timestamps as RFC3339. Amounts travel as decimal
  strings, never JSON numbers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/recurring"
)

// =============================================================================
// ACCOUNT / CATEGORY
// =============================================================================

type AccountDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type CategoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Kind        string `json:"kind"`
	AccountID   string `json:"account_id"`
	CategoryID  string `json:"category_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	OccurredAt  string `json:"occurred_at"`
	ScheduleID  string `json:"schedule_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func transactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		UserID:      string(tx.UserID),
		Kind:        string(tx.Kind),
		AccountID:   string(tx.AccountID),
		CategoryID:  string(tx.CategoryID),
		Amount:      tx.Amount.String(),
		Description: tx.Description,
		OccurredAt:  tx.OccurredAt.Format(time.RFC3339),
		ScheduleID:  string(tx.ScheduleID),
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// RECURRING SCHEDULE
// =============================================================================

type ScheduleDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Kind        string `json:"kind"`
	AccountID   string `json:"account_id"`
	CategoryID  string `json:"category_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`

	Frequency  string `json:"frequency"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`
	DayOfMonth *int   `json:"day_of_month,omitempty"`

	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`

	NextDue        string  `json:"next_due"`
	LastExecutedAt *string `json:"last_executed_at,omitempty"`
	Active         bool    `json:"active"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

func scheduleDTO(s ledger.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:          string(s.ID),
		UserID:      string(s.UserID),
		Kind:        string(s.Kind),
		AccountID:   string(s.AccountID),
		CategoryID:  string(s.CategoryID),
		Amount:      s.Amount.String(),
		Description: s.Description,
		Frequency:   string(s.Frequency),
		DayOfWeek:   s.DayOfWeek,
		DayOfMonth:  s.DayOfMonth,
		StartDate:   s.StartDate.String(),
		NextDue:     s.NextDue.String(),
		Active:      s.Active,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
	if s.EndDate != nil {
		v := s.EndDate.String()
		dto.EndDate = &v
	}
	if s.LastExecutedAt != nil {
		v := s.LastExecutedAt.Format(time.RFC3339)
		dto.LastExecutedAt = &v
	}
	return dto
}

// CreateScheduleRequest is the request to create a recurring schedule.
type CreateScheduleRequest struct {
	Kind        string `json:"kind"`
	AccountID   string `json:"account_id"`
	CategoryID  string `json:"category_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`

	Frequency  string `json:"frequency"`
	DayOfWeek  *int   `json:"day_of_week"`
	DayOfMonth *int   `json:"day_of_month"`

	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// UpdateScheduleRequest is a partial update; absent fields are unchanged.
type UpdateScheduleRequest struct {
	Amount      *string `json:"amount"`
	Description *string `json:"description"`
	CategoryID  *string `json:"category_id"`

	Frequency  *string `json:"frequency"`
	DayOfWeek  *int    `json:"day_of_week"`
	DayOfMonth *int    `json:"day_of_month"`

	EndDate *string `json:"end_date"`
	Active  *bool   `json:"active"`
}

// =============================================================================
// SWEEP
// =============================================================================

type SweepReportDTO struct {
	AsOf                 string          `json:"as_of"`
	ProcessedSchedules   int             `json:"processed_schedules"`
	SuccessfulExecutions int             `json:"successful_executions"`
	FailedSchedules      int             `json:"failed_schedules"`
	Errors               []SweepErrorDTO `json:"errors,omitempty"`
}

type SweepErrorDTO struct {
	ScheduleID  string `json:"schedule_id"`
	WorkspaceID string `json:"workspace_id"`
	Message     string `json:"message"`
}

func sweepReportDTO(r *recurring.ExecutionReport) SweepReportDTO {
	dto := SweepReportDTO{
		AsOf:                 r.AsOf.String(),
		ProcessedSchedules:   r.ProcessedSchedules,
		SuccessfulExecutions: r.SuccessfulExecutions,
		FailedSchedules:      r.FailedSchedules,
	}
	for _, e := range r.Errors {
		dto.Errors = append(dto.Errors, SweepErrorDTO{
			ScheduleID:  string(e.ScheduleID),
			WorkspaceID: string(e.WorkspaceID),
			Message:     e.Message,
		})
	}
	return dto
}

package recurring

import (
	"fmt"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// EXECUTION REPORT - Batch-run artifact, never persisted
// =============================================================================

// ExecutionError records one schedule's failure during a batch sweep.
type ExecutionError struct {
	ScheduleID  ledger.ScheduleID
	WorkspaceID ledger.WorkspaceID
	Message     string
}

// ExecutionReport summarizes one global sweep invocation. Created fresh per
// run, logged/returned, then discarded.
type ExecutionReport struct {
	AsOf ledger.Date

	// ProcessedSchedules is the number of due schedules inspected.
	ProcessedSchedules int
	// SuccessfulExecutions counts individual materialized occurrences,
	// which can exceed ProcessedSchedules when backfill catches up
	// multiple periods per schedule.
	SuccessfulExecutions int
	// FailedSchedules counts schedules whose sweep failed, not occurrences.
	FailedSchedules int

	Errors []ExecutionError
}

// HasFailures reports whether any schedule failed; batch callers map this
// to a non-zero exit code.
func (r *ExecutionReport) HasFailures() bool {
	return r.FailedSchedules > 0
}

func (r *ExecutionReport) Summary() string {
	return fmt.Sprintf("as_of=%s processed=%d successful=%d failed=%d",
		r.AsOf, r.ProcessedSchedules, r.SuccessfulExecutions, r.FailedSchedules)
}

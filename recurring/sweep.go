/*
sweep.go - Backfill sweep and the global batch orchestrator

PURPOSE:
  The catch-up half of the engine. RunBackfill executes every elapsed
  occurrence of one schedule up to a target date, one recurrence step per
  loop iteration. RunGlobalSweep discovers every due schedule across all
  workspaces and runs the backfill per schedule with failure isolation.

BACKFILL ANCHORING:
  Each iteration anchors NextDueAfter on the CURRENT cursor, not on "today"
  or the target date. That is what lets one call correctly materialize N
  missed periods as N distinct occurrences, each advancing the cursor by
  exactly one step. The loop terminates because NextDueAfter is strictly
  increasing.

FAILURE ISOLATION:
  One schedule's failure must never abort or roll back another schedule's
  already-committed executions. Each schedule runs in its own unit of work;
  errors (and panics) are caught, recorded in the report, and the loop
  continues. Only a failure of the discovery query itself is fatal to the
  run. Within one schedule there is no rollback either: a failure at
  iteration k leaves iterations 1..k-1 committed.

SEE ALSO:
  - service.go: The execution unit each iteration delegates to
  - report.go: The report this produces
  - cmd/sweep: Maps the report to a process exit code
*/
package recurring

import (
	"context"
	"fmt"
	"log"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// BACKFILL SWEEP - Per-schedule catch-up
// =============================================================================

// RunBackfill executes every elapsed occurrence of one schedule up to and
// including asOf, returning the number of occurrences materialized. The
// schedule deactivates itself mid-loop when an occurrence would pass its
// end date.
func (s *Service) RunBackfill(ctx context.Context, id ledger.ScheduleID, workspaceID ledger.WorkspaceID, asOf ledger.Date) (int, error) {
	schedule, err := s.Get(ctx, id, workspaceID)
	if err != nil {
		return 0, err
	}
	if !schedule.Active {
		return 0, nil
	}

	executed := 0
	for schedule.Active && schedule.NextDue.BeforeOrEqual(asOf) {
		occurrence := schedule.NextDue

		if schedule.EndDate != nil && occurrence.After(*schedule.EndDate) {
			if schedule, err = s.deactivate(ctx, schedule.ID); err != nil {
				return executed, err
			}
			break
		}

		if _, err := s.createTransactionFrom(ctx, schedule); err != nil {
			return executed, err
		}

		nextDue := NextDueAfter(schedule.Frequency, schedule.DayOfWeek, schedule.DayOfMonth, occurrence)
		executedAt := s.now().UTC()
		patch := ledger.SchedulePatch{
			NextDue:        &nextDue,
			LastExecutedAt: &executedAt,
		}
		if schedule.EndDate != nil && nextDue.After(*schedule.EndDate) {
			inactive := false
			patch.Active = &inactive
		}

		// The update returns a fresh read, guarding against concurrent
		// external changes between iterations.
		updated, err := s.schedules.UpdateSchedule(ctx, schedule.ID, patch)
		if err != nil {
			return executed, fmt.Errorf("advancing cursor for schedule %s: %w", schedule.ID, err)
		}
		if updated == nil {
			return executed, fmt.Errorf("%w: %s", ledger.ErrScheduleNotFound, schedule.ID)
		}
		schedule = updated
		executed++
	}

	return executed, nil
}

func (s *Service) deactivate(ctx context.Context, id ledger.ScheduleID) (*ledger.Schedule, error) {
	active := false
	updated, err := s.schedules.UpdateSchedule(ctx, id, ledger.SchedulePatch{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("deactivating schedule %s: %w", id, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrScheduleNotFound, id)
	}
	return updated, nil
}

// =============================================================================
// GLOBAL BATCH ORCHESTRATOR
// =============================================================================

// RunGlobalSweep discovers every due schedule across all workspaces as of
// the target date and backfills each in its own isolated unit of work.
// Only a failure of the discovery query is fatal; per-schedule failures are
// recorded in the report and the run continues.
func (s *Service) RunGlobalSweep(ctx context.Context, asOf ledger.Date) (*ExecutionReport, error) {
	report := &ExecutionReport{AsOf: asOf}

	due, err := s.schedules.ListDueGlobal(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("listing due schedules: %w", err)
	}
	report.ProcessedSchedules = len(due)

	for _, item := range due {
		executed, err := s.sweepOne(ctx, item, asOf)
		if err == nil {
			report.SuccessfulExecutions += executed
		} else {
			report.FailedSchedules++
			report.Errors = append(report.Errors, ExecutionError{
				ScheduleID:  item.ID,
				WorkspaceID: item.WorkspaceID,
				Message:     err.Error(),
			})
			log.Printf("[Sweep] Failed to execute schedule %s for workspace %s: %v",
				item.ID, item.WorkspaceID, err)
		}
	}

	log.Printf("[Sweep] Completed: %s", report.Summary())
	return report, nil
}

// sweepOne runs one schedule's backfill, containing panics so a broken
// store or pathological schedule cannot abort the rest of the batch.
func (s *Service) sweepOne(ctx context.Context, item ledger.Schedule, asOf ledger.Date) (executed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during sweep: %v", r)
		}
	}()
	return s.RunBackfill(ctx, item.ID, item.WorkspaceID, asOf)
}

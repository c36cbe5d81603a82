/*
frequency.go - Pure recurrence date arithmetic

PURPOSE:
  Computes when a schedule is due. Two entry points:
    FirstDue:     the first occurrence for a schedule anchored on a start
                  date (creation, reactivation, recurrence changes)
    NextDueAfter: the occurrence strictly after one that was just executed
                  (cursor advancement)

  Both are pure functions. "Today" is an explicit parameter so the whole
  engine is deterministically testable; nothing in this file reads the clock.

DAY NUMBERING:
  Day-of-week is 0 = Monday .. 6 = Sunday (ISO-style). Go's time.Weekday is
  Sunday-based, so the conversion is localized in isoWeekday.

MONTHLY CLAMP:
  Day-of-month values 29-31 are silently clamped to 28 so the occurrence
  exists in every month, February included. The schedule then always lands
  on the 28th. This is deliberate compatibility behavior: do NOT replace it
  with a "last valid day of month" rule.

SEE ALSO:
  - validate.go: Rejects configs this file would have no answer for
  - sweep.go: Repeated NextDueAfter calls drive backfill
*/
package recurring

import (
	"time"

	"github.com/fintrack/ledger-engine/ledger"
)

// maxMonthlyDay is the clamp ceiling for day-of-month arithmetic.
const maxMonthlyDay = 28

// isoWeekday maps Go's Sunday-based weekday to 0=Monday .. 6=Sunday.
func isoWeekday(d ledger.Date) int {
	return (int(d.Weekday()) + 6) % 7
}

func clampDayOfMonth(day int) int {
	if day > maxMonthlyDay {
		return maxMonthlyDay
	}
	return day
}

// monthsAheadOn returns the date `months` calendar months after d with the
// day-of-month set to day. Built from time.Date directly because Go's
// AddDate overflows short months (Jan 31 + 1 month = Mar 2/3), which would
// skip a month here.
func monthsAheadOn(d ledger.Date, months, day int) ledger.Date {
	return ledger.Date{Time: time.Date(d.Year(), d.Month()+time.Month(months), day, 0, 0, 0, 0, time.UTC)}
}

// FirstDue returns the earliest occurrence on or after max(startDate, today).
//
// Daily: that date itself. Weekly: the next date whose weekday matches
// dayOfWeek; when the anchor already matches, the occurrence rolls a full
// week ahead. Monthly: the anchor month's clamped target day, rolling into
// the next month when the anchor has already passed it.
//
// Note the floor at today: creating a schedule with a past start date
// silently shifts its first occurrence forward to the present. Past periods
// are never backfilled from creation.
func FirstDue(freq ledger.Frequency, dayOfWeek, dayOfMonth *int, startDate, today ledger.Date) ledger.Date {
	result := ledger.MaxDate(startDate, today)

	switch freq {
	case ledger.FrequencyDaily:
		return result

	case ledger.FrequencyWeekly:
		if dayOfWeek == nil {
			return result
		}
		ahead := *dayOfWeek - isoWeekday(result)
		if ahead <= 0 {
			ahead += 7
		}
		return result.AddDays(ahead)

	case ledger.FrequencyMonthly:
		if dayOfMonth == nil {
			return result
		}
		target := clampDayOfMonth(*dayOfMonth)
		if result.Day() > target {
			return monthsAheadOn(result, 1, target)
		}
		return result.WithDay(target)
	}

	return result
}

// NextDueAfter returns the occurrence strictly after lastOccurrence.
// The result is always later than lastOccurrence, which is what guarantees
// the backfill loop terminates.
func NextDueAfter(freq ledger.Frequency, dayOfWeek, dayOfMonth *int, lastOccurrence ledger.Date) ledger.Date {
	switch freq {
	case ledger.FrequencyDaily:
		return lastOccurrence.AddDays(1)

	case ledger.FrequencyWeekly:
		if dayOfWeek == nil {
			return lastOccurrence.AddDays(7)
		}
		// Step forward day by day: lands 1-7 days ahead, never the same day.
		probe := lastOccurrence.AddDays(1)
		for isoWeekday(probe) != *dayOfWeek {
			probe = probe.AddDays(1)
		}
		return probe

	case ledger.FrequencyMonthly:
		if dayOfMonth == nil {
			return monthsAheadOn(lastOccurrence, 1, lastOccurrence.Day())
		}
		return monthsAheadOn(lastOccurrence, 1, clampDayOfMonth(*dayOfMonth))
	}

	return lastOccurrence.AddDays(1)
}

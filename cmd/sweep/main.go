/*
main.go - One-shot global sweep binary

PURPOSE:
  Runs the global recurring-transaction sweep once and exits. Intended
  to be invoked from cron or a container scheduler; it shares the exact
  same orchestrator as the in-process scheduler and the admin endpoint.

COMMAND-LINE FLAGS:
  -db     SQLite database path (default: ledger.db)
  -as-of  Sweep cutoff date, YYYY-MM-DD (default: today, UTC)

EXIT CODES:
  0  sweep completed, no schedule failed
  1  discovery failed, or at least one schedule failed

EXAMPLES:
  # Nightly cron entry
  15 0 * * * /usr/local/bin/sweep -db=/var/lib/ledger/ledger.db

  # Replay a missed day
  ./sweep -db=./ledger.db -as-of=2026-08-27

SEE ALSO:
  - recurring/sweep.go: The orchestrator
  - api/scheduler.go: In-process alternative
*/
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/recurring"
	"github.com/fintrack/ledger-engine/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "ledger.db", "SQLite database path")
	asOfFlag := flag.String("as-of", "", "sweep cutoff date (YYYY-MM-DD, default today UTC)")
	flag.Parse()

	asOf := ledger.DateOf(time.Now().UTC())
	if *asOfFlag != "" {
		parsed, err := ledger.ParseDate(*asOfFlag)
		if err != nil {
			log.Fatalf("Invalid -as-of date %q: %v", *asOfFlag, err)
		}
		asOf = parsed
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	service := recurring.NewService(recurring.Stores{
		Schedules:    store,
		Transactions: store,
		Accounts:     store,
		Categories:   store,
	})

	report, err := service.RunGlobalSweep(context.Background(), asOf)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	log.Printf("[Sweep] %s", report.Summary())
	for _, e := range report.Errors {
		log.Printf("[Sweep] schedule %s (workspace %s): %s", e.ScheduleID, e.WorkspaceID, e.Message)
	}
	if report.HasFailures() {
		os.Exit(1)
	}
}

/*
scheduler.go - In-process sweep scheduler

PURPOSE:
  Periodically runs the global batch sweep so deployments without an
  external cron still execute due schedules. Deployments that do run
  cmd/sweep from cron leave this disabled; both invokers share
  recurring.Service.RunGlobalSweep.

DESIGN:
  - Background goroutine with a configurable check interval
  - Runs once immediately on start, then on every tick
  - Per-schedule failures stay inside the sweep report; only the report
    summary and errors are logged here

USAGE:
  scheduler := NewSweepScheduler(service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - recurring/sweep.go: The orchestrator this invokes
  - cmd/sweep: The cron alternative
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/recurring"
)

// SweepScheduler runs the global sweep on a timer.
type SweepScheduler struct {
	Service       *recurring.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a scheduler with a 1 hour check interval.
func NewSweepScheduler(service *recurring.Service) *SweepScheduler {
	return &SweepScheduler{
		Service:       service,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()
	asOf := ledger.DateOf(time.Now())

	report, err := ss.Service.RunGlobalSweep(ctx, asOf)
	if err != nil {
		log.Printf("[Scheduler] Sweep failed: %v", err)
		return
	}
	if report.HasFailures() {
		log.Printf("[Scheduler] Sweep finished with failures: %s", report.Summary())
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}

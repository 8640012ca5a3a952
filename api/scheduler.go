/*
scheduler.go - Automated status sweep scheduler

PURPOSE:
  Student status (Active/Inactive) depends on today's date, so it goes
  stale without any write. The scheduler re-runs the status sweep on a
  cron schedule so the stored column tracks course end dates.

DESIGN:
  - robfig/cron drives the schedule (default "@daily")
  - Runs once immediately on start, then on schedule
  - SkipIfStillRunning: a slow sweep is never overlapped by the next one
  - Reads (reports, student list) derive status lazily, so a missed
    sweep only delays the stored column, never a displayed value

USAGE:
  scheduler := NewStatusSweepScheduler(engine, "@daily")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerStatusSweep endpoint (manual sweep)
  - ledger/status.go: Sweeper
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/fee-ledger/ledger"
)

// sweepTimeout bounds one scheduled sweep.
const sweepTimeout = 5 * time.Minute

// StatusSweepScheduler runs the status sweep periodically.
type StatusSweepScheduler struct {
	Engine   *ledger.Engine
	Schedule string
	Enabled  bool
	Now      func() ledger.Date

	cron *cron.Cron
	wg   sync.WaitGroup
	mu   sync.Mutex

	lastRun    time.Time
	lastResult ledger.SweepResult
	lastErr    error
}

// NewStatusSweepScheduler creates a new scheduler.
func NewStatusSweepScheduler(engine *ledger.Engine, schedule string) *StatusSweepScheduler {
	return &StatusSweepScheduler{
		Engine:   engine,
		Schedule: schedule,
		Enabled:  true,
		Now:      ledger.Today,
	}
}

// Start begins the scheduler. An invalid schedule is reported and nothing
// is started.
func (s *StatusSweepScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(s.Schedule, s.runSweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.Schedule, err)
	}
	s.cron = c

	// Run immediately on start
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSweep()
	}()

	c.Start()
	log.Printf("[Scheduler] Started with schedule: %s", s.Schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *StatusSweepScheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.wg.Wait()
	log.Println("[Scheduler] Stopped")
}

// LastRun returns when the last sweep finished and its outcome.
func (s *StatusSweepScheduler) LastRun() (time.Time, ledger.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastResult, s.lastErr
}

func (s *StatusSweepScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	today := s.Now()
	log.Printf("[Scheduler] Running status sweep for %s", today)

	res, err := s.Engine.Sweep(ctx, today)
	if err != nil {
		log.Printf("[Scheduler] Status sweep failed: %v", err)
	} else {
		log.Printf("[Scheduler] Status sweep done: %d checked, %d activated, %d deactivated",
			res.Checked, res.Activated, res.Deactivated)
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastResult = res
	s.lastErr = err
	s.mu.Unlock()
}

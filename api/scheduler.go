/*
scheduler.go - Calendar resync scheduler

PURPOSE:
  Calendar notifications are best-effort, so a slot created while the
  broker was down has no external reference and never shows up in the
  calendar. This scheduler periodically retries those registrations.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only upcoming slots without an external reference are touched
  - Records the last run so the admin UI can show it

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewCalendarSyncScheduler(engine.Locks)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - admin.go: ResyncCalendar endpoint (manual trigger)
  - studio/slotlock.go: SlotLockManager.ResyncCalendar
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// CalendarResyncer is implemented by studio.SlotLockManager.
type CalendarResyncer interface {
	ResyncCalendar(ctx context.Context) (int, error)
}

// SyncRun describes one resync pass.
type SyncRun struct {
	At     time.Time
	Synced int
	Err    error
}

// CalendarSyncScheduler periodically re-registers slots with the calendar.
type CalendarSyncScheduler struct {
	Locks         CalendarResyncer
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun *SyncRun
}

// NewCalendarSyncScheduler creates a new scheduler.
func NewCalendarSyncScheduler(locks CalendarResyncer) *CalendarSyncScheduler {
	return &CalendarSyncScheduler{
		Locks:         locks,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (cs *CalendarSyncScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled || cs.CheckInterval <= 0 {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)

	go cs.run(cs.ticker, cs.stop)

	log.Printf("[Scheduler] Started with check interval: %v", cs.CheckInterval)
}

// Stop stops the scheduler and waits for a running pass to finish.
func (cs *CalendarSyncScheduler) Stop() {
	cs.mu.Lock()
	if cs.ticker == nil {
		cs.mu.Unlock()
		return
	}
	cs.ticker.Stop()
	close(cs.stop)
	cs.ticker = nil
	cs.mu.Unlock()

	cs.wg.Wait()
	log.Println("[Scheduler] Stopped")
}

func (cs *CalendarSyncScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cs.wg.Done()

	// Run immediately on start
	cs.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			cs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one resync pass and records it.
func (cs *CalendarSyncScheduler) RunNow(ctx context.Context) SyncRun {
	n, err := cs.Locks.ResyncCalendar(ctx)
	run := SyncRun{At: time.Now().UTC(), Synced: n, Err: err}
	if err != nil {
		log.Printf("[Scheduler] Calendar resync failed after %d slots: %v", n, err)
	} else if n > 0 {
		log.Printf("[Scheduler] Registered %d slots with the calendar", n)
	}

	cs.mu.Lock()
	cs.lastRun = &run
	cs.mu.Unlock()
	return run
}

// LastRun returns the most recent pass, or nil before the first one.
func (cs *CalendarSyncScheduler) LastRun() *SyncRun {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.lastRun == nil {
		return nil
	}
	run := *cs.lastRun
	return &run
}

// GetNextRunTime returns when the next scheduled check will occur.
func (cs *CalendarSyncScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(cs.CheckInterval)
}

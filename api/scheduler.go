/*
scheduler.go - Stored calculation retention

PURPOSE:
  Saved calculations carry personal data (age, sex, postal code, salary
  history). The retention scheduler periodically deletes calculations
  older than the configured retention window.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Retention 0 disables the scheduler
  - Each sweep is one DELETE on created_at; child rows cascade

CONFIGURATION:
  - Retention:     CALCULATION_RETENTION (e.g. 720h), 0 = keep forever
  - CheckInterval: How often to sweep (default: 1 hour)

USAGE:
  scheduler := NewRetentionScheduler(store, 30*24*time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - store/sqlite/sqlite.go: DeleteCalculationsBefore
  - cmd/server/main.go: Lifecycle
*/
package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/warp/pension-engine/store/sqlite"
)

// RetentionScheduler prunes old calculations.
type RetentionScheduler struct {
	Store         *sqlite.Store
	Retention     time.Duration
	CheckInterval time.Duration

	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetentionScheduler creates a scheduler; retention <= 0 disables it.
func NewRetentionScheduler(store *sqlite.Store, retention time.Duration) *RetentionScheduler {
	return &RetentionScheduler{
		Store:         store,
		Retention:     retention,
		CheckInterval: 1 * time.Hour,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether sweeps will run.
func (rs *RetentionScheduler) Enabled() bool {
	return rs.Retention > 0
}

// Start begins the scheduler.
func (rs *RetentionScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled() {
		log.Info("Retention scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	log.WithFields(log.Fields{
		"retention":      rs.Retention.String(),
		"check_interval": rs.CheckInterval.String(),
	}).Info("Retention scheduler started")
}

// Stop stops the scheduler and waits for a running sweep.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		log.Info("Retention scheduler stopped")
	}
}

func (rs *RetentionScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			rs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep and returns the number of deleted calculations.
func (rs *RetentionScheduler) RunNow(ctx context.Context) int64 {
	if !rs.Enabled() {
		return 0
	}
	cutoff := rs.now().Add(-rs.Retention)

	n, err := rs.Store.DeleteCalculationsBefore(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Retention sweep failed")
		return 0
	}
	if n > 0 {
		log.WithFields(log.Fields{
			"deleted": n,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Retention sweep completed")
	}
	return n
}

/*
scheduler.go - Automated billing scheduler

PURPOSE:
  Periodically walks every active lease and asks the generator for the next
  invoice. The generator is idempotent, so the interval only bounds billing
  latency: running hourly, daily, or twice on the same day converges on the
  same ledger.

DESIGN:
  - Runs a background goroutine with configurable interval
  - One failing lease never stops the batch; the error is logged and the
    run moves on to the next lease
  - Every run logs a summary (created / too-early / already-billed / failed)

CONFIGURATION:
  - Interval: How often to run (default: 24 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(store, clock, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger/generator.go: The per-lease idempotent generation
  - handlers.go: RunBilling endpoint (manual batch trigger)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/rent-ledger/ledger"
)

// BillingScheduler drives periodic invoice generation for active leases.
type BillingScheduler struct {
	Store     ledger.TxStore
	Generator *ledger.Generator
	Interval  time.Duration
	Enabled   bool

	log    *logrus.Logger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// RunSummary reports what one batch run did.
type RunSummary struct {
	Leases        int
	Created       int
	TooEarly      int
	AlreadyBilled int
	Failed        int
	StartedAt     time.Time
	Duration      time.Duration
}

// NewBillingScheduler creates a scheduler with a daily interval.
func NewBillingScheduler(store ledger.TxStore, clock ledger.Clock, log *logrus.Logger) *BillingScheduler {
	return &BillingScheduler{
		Store:     store,
		Generator: ledger.NewGenerator(store, clock),
		Interval:  24 * time.Hour,
		Enabled:   true,
		log:       log,
		stop:      make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.log.Info("billing scheduler disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.Interval)
	bs.wg.Add(1)

	go bs.loop()

	bs.log.WithField("interval", bs.Interval).Info("billing scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.log.Info("billing scheduler stopped")
	}
}

func (bs *BillingScheduler) loop() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.Run(context.Background())

	for {
		select {
		case <-bs.ticker.C:
			bs.Run(context.Background())
		case <-bs.stop:
			return
		}
	}
}

// Run executes one billing batch over all active leases and returns the
// summary. Also invoked directly by the admin endpoint.
func (bs *BillingScheduler) Run(ctx context.Context) RunSummary {
	started := time.Now()
	summary := RunSummary{StartedAt: started}

	leases, err := bs.Store.ListActiveLeases(ctx)
	if err != nil {
		bs.log.WithError(err).Error("billing run: failed to list active leases")
		summary.Duration = time.Since(started)
		return summary
	}
	summary.Leases = len(leases)

	for i := range leases {
		lease := leases[i]
		result, err := bs.Generator.GenerateNextInvoice(ctx, &lease)
		if err != nil {
			// Log and continue; the lease is retried on the next run.
			summary.Failed++
			bs.log.WithError(err).WithField("lease_id", lease.ID).
				Error("billing run: lease failed")
			continue
		}

		switch result.Outcome {
		case ledger.OutcomeCreated:
			summary.Created++
			bs.log.WithFields(logrus.Fields{
				"lease_id":     lease.ID,
				"entry_id":     result.Entry.ID,
				"reference_id": result.Entry.ReferenceID,
				"due_date":     result.Entry.DueDate.Format("2006-01-02"),
				"total":        result.Entry.TotalAmount.StringFixed(2),
			}).Info("billing run: invoice created")
		case ledger.OutcomeTooEarly:
			summary.TooEarly++
		case ledger.OutcomeAlreadyBilled:
			summary.AlreadyBilled++
		}
	}

	summary.Duration = time.Since(started)
	bs.log.WithFields(logrus.Fields{
		"leases":         summary.Leases,
		"created":        summary.Created,
		"too_early":      summary.TooEarly,
		"already_billed": summary.AlreadyBilled,
		"failed":         summary.Failed,
		"duration":       summary.Duration,
	}).Info("billing run completed")

	return summary
}

// RunNow triggers an immediate batch (for testing/admin).
func (bs *BillingScheduler) RunNow() RunSummary {
	return bs.Run(context.Background())
}

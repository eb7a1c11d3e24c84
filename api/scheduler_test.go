package api_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-ledger/api"
	"github.com/warp/rent-ledger/ledger"
	"github.com/warp/rent-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newQuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func activeLease(id string, start time.Time) ledger.Lease {
	return ledger.Lease{
		ID:          ledger.LeaseID(id),
		MonthlyRent: ledger.MustDecimal("1000"),
		StartDate:   start,
		Status:      ledger.LeaseActive,
		RentDueDay:  start.Day(),
	}
}

// faultyStore wraps a TxStore and fails transactions touching one lease,
// to prove batch isolation.
type faultyStore struct {
	ledger.TxStore
	failLease ledger.LeaseID
}

var errInjected = errors.New("injected store failure")

func (f *faultyStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return f.TxStore.WithTx(ctx, func(s ledger.Store) error {
		return fn(&faultyView{Store: s, failLease: f.failLease})
	})
}

type faultyView struct {
	ledger.Store
	failLease ledger.LeaseID
}

func (f *faultyView) LatestEntryForLease(ctx context.Context, leaseID ledger.LeaseID) (*ledger.Entry, error) {
	if leaseID == f.failLease {
		return nil, errInjected
	}
	return f.Store.LatestEntryForLease(ctx, leaseID)
}

// =============================================================================
// BATCH RUNS
// =============================================================================

func TestScheduler_RunBillsAllDueLeases(t *testing.T) {
	// GIVEN: Three active leases due today and one inactive lease
	// WHEN: Running one batch
	// THEN: Three entries created; the ended lease is not billed

	now := ledger.Date(2026, time.February, 1)
	mem := store.NewTxMemory()
	ctx := context.Background()

	for _, id := range []string{"lease-1", "lease-2", "lease-3"} {
		require.NoError(t, mem.SaveLease(ctx, activeLease(id, now)))
	}
	ended := activeLease("lease-ended", now)
	ended.Status = ledger.LeaseEnded
	require.NoError(t, mem.SaveLease(ctx, ended))

	scheduler := api.NewBillingScheduler(mem, ledger.FixedClock{T: now}, newQuietLogger())
	summary := scheduler.Run(ctx)

	assert.Equal(t, 3, summary.Leases)
	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 0, summary.Failed)

	entries, err := mem.ListEntriesForLease(ctx, "lease-ended")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScheduler_RerunIsIdempotent(t *testing.T) {
	// GIVEN: A batch that already billed every lease today
	// WHEN: Running again the same day
	// THEN: Nothing new is created

	now := ledger.Date(2026, time.February, 1)
	mem := store.NewTxMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveLease(ctx, activeLease("lease-1", now)))

	scheduler := api.NewBillingScheduler(mem, ledger.FixedClock{T: now}, newQuietLogger())

	first := scheduler.Run(ctx)
	assert.Equal(t, 1, first.Created)

	second := scheduler.Run(ctx)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.TooEarly)
}

func TestScheduler_OneFailingLeaseDoesNotStopTheBatch(t *testing.T) {
	// GIVEN: Three due leases, the middle one failing at the store level
	// WHEN: Running the batch
	// THEN: The other two are still billed; the failure is counted

	now := ledger.Date(2026, time.February, 1)
	mem := store.NewTxMemory()
	ctx := context.Background()
	for _, id := range []string{"lease-1", "lease-2", "lease-3"} {
		require.NoError(t, mem.SaveLease(ctx, activeLease(id, now)))
	}

	faulty := &faultyStore{TxStore: mem, failLease: "lease-2"}
	scheduler := api.NewBillingScheduler(faulty, ledger.FixedClock{T: now}, newQuietLogger())

	summary := scheduler.Run(ctx)

	assert.Equal(t, 3, summary.Leases)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)

	for _, id := range []ledger.LeaseID{"lease-1", "lease-3"} {
		entries, err := mem.ListEntriesForLease(ctx, id)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "lease %s should be billed", id)
	}
	entries, err := mem.ListEntriesForLease(ctx, "lease-2")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScheduler_StartAndStop(t *testing.T) {
	// GIVEN: A started scheduler with a long interval
	// WHEN: Stopping it
	// THEN: The startup run has happened and Stop returns cleanly

	now := ledger.Date(2026, time.February, 1)
	mem := store.NewTxMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveLease(ctx, activeLease("lease-1", now)))

	scheduler := api.NewBillingScheduler(mem, ledger.FixedClock{T: now}, newQuietLogger())
	scheduler.Interval = time.Hour

	scheduler.Start()
	// The startup run is asynchronous; poll briefly for its effect.
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := mem.ListEntriesForLease(ctx, "lease-1")
		require.NoError(t, err)
		if len(entries) == 1 || time.Now().After(deadline) {
			assert.Len(t, entries, 1)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	scheduler.Stop()
}

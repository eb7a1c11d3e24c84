/*
store.go - Persistence interfaces for leases and ledger entries

PURPOSE:
  Defines the contract between the billing engine and the database. The
  engine owns no persistence mechanics beyond these interfaces; SQLite and
  in-memory implementations are provided elsewhere.

UNIQUENESS CONTRACT:
  CreateEntry must reject a second entry for the same (lease, year, month of
  due date) with ErrDuplicatePeriod, and a reused reference ID with
  ErrDuplicateReferenceID. Both backstop the generator's check-then-insert
  sequence against concurrent runs.

MUTATION CONTRACT:
  Leases are read-only from this engine's perspective (SaveLease exists for
  the admin surface and tests, not for billing). Entries are created once
  and then updated in place by SaveEntry; there is no delete.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - generator.go, payment.go: The read-check-write sequences that WithTx
    must make atomic
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// LEASE STORE
// =============================================================================

// LeaseStore provides lease lookups for the billing engine.
type LeaseStore interface {
	// SaveLease inserts or updates a lease record.
	SaveLease(ctx context.Context, lease Lease) error

	// GetLease returns a lease by ID, or nil if absent.
	GetLease(ctx context.Context, id LeaseID) (*Lease, error)

	// ListLeases returns all leases.
	ListLeases(ctx context.Context) ([]Lease, error)

	// ListActiveLeases returns the leases the scheduler should bill.
	ListActiveLeases(ctx context.Context) ([]Lease, error)
}

// =============================================================================
// ENTRY STORE
// =============================================================================

// EntryStore provides ledger entry persistence.
type EntryStore interface {
	// CreateEntry inserts a new entry. Returns ErrDuplicatePeriod if one
	// already exists for (lease, year, month of DueDate), and
	// ErrDuplicateReferenceID on a reference collision.
	CreateEntry(ctx context.Context, entry Entry) error

	// SaveEntry updates an existing entry's mutable fields.
	SaveEntry(ctx context.Context, entry Entry) error

	// GetEntry returns an entry by ID, or nil if absent.
	GetEntry(ctx context.Context, id EntryID) (*Entry, error)

	// LatestEntryForLease returns the entry with the greatest DueDate for
	// a lease, or nil when the lease has never been billed.
	LatestEntryForLease(ctx context.Context, leaseID LeaseID) (*Entry, error)

	// EntryExistsForPeriod reports whether an entry exists whose DueDate
	// falls in the given calendar (year, month).
	EntryExistsForPeriod(ctx context.Context, leaseID LeaseID, year int, month time.Month) (bool, error)

	// ListEntriesForLease returns a lease's entries ordered by DueDate.
	ListEntriesForLease(ctx context.Context, leaseID LeaseID) ([]Entry, error)

	// ReferenceIDExists reports whether a reference ID is already taken.
	ReferenceIDExists(ctx context.Context, referenceID string) (bool, error)
}

// =============================================================================
// COMBINED / TRANSACTIONAL STORE
// =============================================================================

// Store is the full persistence surface the engine consumes.
type Store interface {
	LeaseStore
	EntryStore
}

// TxStore wraps Store with transaction support. The generator's
// check-last-entry → check-period → insert sequence and the payment
// applier's read-modify-write both run inside WithTx so concurrent
// invocations cannot interleave.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

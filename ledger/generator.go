/*
generator.go - Idempotent per-period invoice creation

PURPOSE:
  Determines the next unbilled period for a lease and creates exactly one
  Entry for it. Safe to invoke any number of times: re-runs, overlapping
  scheduler ticks, and crash-restarted batches all converge on one entry
  per (lease, calendar month).

ALGORITHM:
  1. next due date = latest entry's due date + 1 month, or the lease start
     date when the lease has never been billed
  2. skip when the next due date is in the future (nothing to bill yet)
  3. skip when an entry already exists for that (year, month)
  4. otherwise insert, then immediately re-derive the total so a period
     generated after its due date captures the fee already accrued

CONCURRENCY:
  The whole sequence runs inside one store transaction, and the store's
  unique (lease, period) index backstops it: a concurrent run that loses
  the race gets ErrDuplicatePeriod from the insert, which is mapped to the
  already-billed skip, not an error.

SEE ALSO:
  - api/scheduler.go: The batch driver that calls this for every active lease
  - latefee.go: CurrentTotalOwed used at creation time
*/
package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// OUTCOME - Created vs. the two designed skip paths
// =============================================================================

type GenerateOutcome string

const (
	// OutcomeCreated: a new entry was persisted.
	OutcomeCreated GenerateOutcome = "created"

	// OutcomeTooEarly: the next due date is still in the future.
	OutcomeTooEarly GenerateOutcome = "too_early"

	// OutcomeAlreadyBilled: an entry for the period exists (idempotence
	// guard, or a concurrent run won the insert race).
	OutcomeAlreadyBilled GenerateOutcome = "already_billed"
)

// GenerateResult reports what a generation attempt did. Entry is non-nil
// only for OutcomeCreated.
type GenerateResult struct {
	Outcome GenerateOutcome
	Entry   *Entry
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator creates the next rent invoice for a lease.
type Generator struct {
	Store TxStore
	Clock Clock
}

func NewGenerator(store TxStore, clock Clock) *Generator {
	return &Generator{Store: store, Clock: clock}
}

// GenerateNextInvoice bills the next unbilled period for the lease, or
// skips when there is nothing to bill. Skips are not errors.
func (g *Generator) GenerateNextInvoice(ctx context.Context, lease *Lease) (GenerateResult, error) {
	now := g.Clock.Now()
	today := DateOf(now)

	var result GenerateResult
	err := g.Store.WithTx(ctx, func(s Store) error {
		last, err := s.LatestEntryForLease(ctx, lease.ID)
		if err != nil {
			return err
		}

		nextDueDate := DateOf(lease.StartDate)
		if last != nil {
			nextDueDate = AddMonth(last.DueDate)
		}

		if nextDueDate.After(today) {
			result = GenerateResult{Outcome: OutcomeTooEarly}
			return nil
		}

		exists, err := s.EntryExistsForPeriod(ctx, lease.ID, nextDueDate.Year(), nextDueDate.Month())
		if err != nil {
			return err
		}
		if exists {
			result = GenerateResult{Outcome: OutcomeAlreadyBilled}
			return nil
		}

		referenceID, err := newReferenceID(ctx, s, now)
		if err != nil {
			return err
		}

		entry := Entry{
			ID:            EntryID(uuid.NewString()),
			LeaseID:       lease.ID,
			BaseAmount:    lease.MonthlyRent,
			LateFeeAmount: MustDecimal("0"),
			TotalAmount:   lease.MonthlyRent,
			PaidAmount:    MustDecimal("0"),
			DueDate:       nextDueDate,
			Status:        StatusPending,
			ReferenceID:   referenceID,
			CreatedAt:     now,
		}

		if err := s.CreateEntry(ctx, entry); err != nil {
			if errors.Is(err, ErrDuplicatePeriod) {
				result = GenerateResult{Outcome: OutcomeAlreadyBilled}
				return nil
			}
			return err
		}

		// A period generated after its due date is already accruing a fee;
		// fold it into the snapshot right away.
		remaining := Remaining(&entry)
		fee := AccruedFee(lease, entry.DueDate, remaining, now)
		if fee.IsPositive() {
			entry.LateFeeAmount = fee
			entry.TotalAmount = remaining.Add(fee)
			if err := s.SaveEntry(ctx, entry); err != nil {
				return err
			}
		}

		result = GenerateResult{Outcome: OutcomeCreated, Entry: &entry}
		return nil
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate invoice for lease %s: %w", lease.ID, err)
	}
	return result, nil
}

// =============================================================================
// REFERENCE IDS - RENT-YYYYMMDD-XXXX, retried until unique
// =============================================================================

const (
	referenceAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceMaxAttempts = 10
)

func newReferenceID(ctx context.Context, s Store, now time.Time) (string, error) {
	for attempt := 0; attempt < referenceMaxAttempts; attempt++ {
		suffix, err := randomSuffix(4)
		if err != nil {
			return "", err
		}
		ref := fmt.Sprintf("RENT-%s-%s", now.Format("20060102"), suffix)

		exists, err := s.ReferenceIDExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", ErrReferenceIDExhausted
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(buf), nil
}

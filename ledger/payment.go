/*
payment.go - Payment application and the entry state machine

PURPOSE:
  Applies a monetary payment to a ledger entry, accumulates PaidAmount,
  and transitions the entry's status:

    pending -> partial -> paid
    pending -> paid               (single full payment)

  overdue and failed are not reachable here; operators set them directly
  through the administrative status override (see OverrideStatus).

KNOWN LIMITATION (kept as-is):
  There is no upper bound on payments. Overpayment is accepted, remaining
  is floored at zero, and the excess is absorbed without credit tracking.

CONCURRENCY:
  The read of PaidAmount/TotalAmount and the write back run inside one
  store transaction, so two payments landing on the same entry cannot lose
  an update.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentApplier records payments against ledger entries.
type PaymentApplier struct {
	Store TxStore
	Clock Clock
}

func NewPaymentApplier(store TxStore, clock Clock) *PaymentApplier {
	return &PaymentApplier{Store: store, Clock: clock}
}

// ApplyPayment adds amount to the entry's paid total and advances its
// status. A nil method leaves any previously recorded method in place;
// non-empty notes replace the entry's notes.
//
// Rejects non-positive amounts with InvalidPaymentAmountError before any
// state is touched.
func (p *PaymentApplier) ApplyPayment(ctx context.Context, entryID EntryID, amount decimal.Decimal, method *PaymentMethod, notes string) (*Entry, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, &InvalidPaymentAmountError{EntryID: entryID, Amount: amount}
	}

	var updated *Entry
	err := p.Store.WithTx(ctx, func(s Store) error {
		entry, err := s.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrEntryNotFound
		}

		entry.PaidAmount = entry.PaidAmount.Add(amount)
		if method != nil {
			entry.PaymentMethod = method
		}
		if notes != "" {
			entry.Notes = notes
		}

		if entry.TotalAmount.Sub(entry.PaidAmount).LessThanOrEqual(decimal.Zero) {
			entry.Status = StatusPaid
			paidAt := p.Clock.Now()
			entry.PaidAt = &paidAt
		} else {
			entry.Status = StatusPartial
		}

		if err := s.SaveEntry(ctx, *entry); err != nil {
			return err
		}
		updated = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply payment to entry %s: %w", entryID, err)
	}
	return updated, nil
}

// OverrideStatus force-sets an entry's status. This is the administrative
// path into overdue and failed; the payment algorithm never produces them.
func (p *PaymentApplier) OverrideStatus(ctx context.Context, entryID EntryID, status EntryStatus) (*Entry, error) {
	if _, err := ParseEntryStatus(string(status)); err != nil {
		return nil, err
	}

	var updated *Entry
	err := p.Store.WithTx(ctx, func(s Store) error {
		entry, err := s.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrEntryNotFound
		}

		entry.Status = status
		if err := s.SaveEntry(ctx, *entry); err != nil {
			return err
		}
		updated = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("override status on entry %s: %w", entryID, err)
	}
	return updated, nil
}

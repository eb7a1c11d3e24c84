/*
latefee.go - Pure late-fee and amount-owed calculations

PURPOSE:
  Computes the fee accrued on an unpaid entry and the total a tenant owes
  on it right now. Everything here is a pure function of its inputs: the
  same (lease, due date, remaining, now) always yields the same fee, which
  is what makes idempotent regeneration and deterministic tests possible.

ACCRUAL MODEL:
  daysLate       = whole days from due date to now
  chargeableDays = max(0, daysLate - grace period)
  fixed          -> value                       (flat)
  percentage     -> remaining * value           (once)
  daily          -> remaining * value * days    (per chargeable day)
  Fee is clamped to the cap when one is set and rounded to 2 places.

NOTE ON Entry.TotalAmount:
  That field is a snapshot written at creation and on payment; anything
  showing "amount due today" must call CurrentTotalOwed instead of reading
  the stored field.

SEE ALSO:
  - summary.go: Per-lease views built on these functions
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Remaining returns the unpaid balance of an entry, floored at zero.
// Overpayment never produces a negative remainder.
func Remaining(entry *Entry) decimal.Decimal {
	r := entry.TotalAmount.Sub(entry.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// AccruedFee returns the late fee owed on a balance at the given instant.
//
// Returns zero when nothing is owed, when now is on or before the due
// date, when the grace period swallows all late days, or when the lease
// has no fee rule.
func AccruedFee(lease *Lease, dueDate time.Time, remaining decimal.Decimal, now time.Time) decimal.Decimal {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if !DateOf(now).After(DateOf(dueDate)) {
		return decimal.Zero
	}

	daysLate := WholeDaysBetween(dueDate, now)
	chargeableDays := daysLate - lease.GracePeriodDays
	if chargeableDays <= 0 || lease.LateFeeType == nil {
		return decimal.Zero
	}

	var fee decimal.Decimal
	switch *lease.LateFeeType {
	case FeeFixed:
		fee = lease.LateFeeValue
	case FeePercentage:
		fee = remaining.Mul(lease.LateFeeValue)
	case FeeDaily:
		fee = remaining.Mul(lease.LateFeeValue).Mul(decimal.NewFromInt(int64(chargeableDays)))
	default:
		return decimal.Zero
	}

	if lease.LateFeeCap != nil && fee.GreaterThan(*lease.LateFeeCap) {
		fee = *lease.LateFeeCap
	}

	return fee.Round(2)
}

// CurrentTotalOwed returns the live amount due on an entry: the unpaid
// balance plus the fee accrued on it as of now.
func CurrentTotalOwed(lease *Lease, entry *Entry, now time.Time) decimal.Decimal {
	remaining := Remaining(entry)
	return remaining.Add(AccruedFee(lease, entry.DueDate, remaining, now))
}

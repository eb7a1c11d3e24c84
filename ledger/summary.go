/*
summary.go - Live per-lease ledger views

PURPOSE:
  The read path behind "amount due today". Entry.TotalAmount is a stored
  snapshot; these functions re-derive the live remaining, fee, and total
  for each entry so summary and listing views never show stale figures.
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntrySummary is one entry with its live-derived amounts.
type EntrySummary struct {
	Entry     Entry
	Remaining decimal.Decimal
	LateFee   decimal.Decimal
	TotalDue  decimal.Decimal
}

// PaymentsSummary derives the live view of every entry for a lease.
func PaymentsSummary(lease *Lease, entries []Entry, now time.Time) []EntrySummary {
	summaries := make([]EntrySummary, 0, len(entries))
	for _, entry := range entries {
		remaining := Remaining(&entry)
		fee := AccruedFee(lease, entry.DueDate, remaining, now)
		summaries = append(summaries, EntrySummary{
			Entry:     entry,
			Remaining: remaining,
			LateFee:   fee,
			TotalDue:  remaining.Add(fee),
		})
	}
	return summaries
}

// CurrentBalance returns the lease's total live amount due across all of
// its entries, rounded to 2 places.
func CurrentBalance(lease *Lease, entries []Entry, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(CurrentTotalOwed(lease, &entry, now))
	}
	return total.Round(2)
}

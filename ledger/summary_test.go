package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-ledger/ledger"
)

func TestPaymentsSummary_DerivesLiveAmounts(t *testing.T) {
	// GIVEN: A lease with a fixed 50.00 fee (no grace) and three entries:
	//        one paid, one partially paid and overdue, one current
	// WHEN: Summarizing on 2026-03-10
	// THEN: Each line carries live remaining/fee/total rather than the
	//       stored snapshots

	feeType := ledger.FeeFixed
	lease := &ledger.Lease{
		ID:           "lease-1",
		MonthlyRent:  ledger.MustDecimal("1000"),
		StartDate:    ledger.Date(2026, time.January, 1),
		Status:       ledger.LeaseActive,
		LateFeeType:  &feeType,
		LateFeeValue: ledger.MustDecimal("50"),
	}
	entries := []ledger.Entry{
		{
			ID: "e-jan", LeaseID: "lease-1",
			TotalAmount: ledger.MustDecimal("1000"),
			PaidAmount:  ledger.MustDecimal("1000"),
			DueDate:     ledger.Date(2026, time.January, 1),
			Status:      ledger.StatusPaid,
		},
		{
			ID: "e-feb", LeaseID: "lease-1",
			TotalAmount: ledger.MustDecimal("1000"),
			PaidAmount:  ledger.MustDecimal("400"),
			DueDate:     ledger.Date(2026, time.February, 1),
			Status:      ledger.StatusPartial,
		},
		{
			ID: "e-mar", LeaseID: "lease-1",
			TotalAmount: ledger.MustDecimal("1000"),
			PaidAmount:  ledger.MustDecimal("0"),
			DueDate:     ledger.Date(2026, time.March, 10),
			Status:      ledger.StatusPending,
		},
	}

	now := ledger.Date(2026, time.March, 10)
	summaries := ledger.PaymentsSummary(lease, entries, now)
	require.Len(t, summaries, 3)

	// Paid entry contributes nothing
	assert.True(t, summaries[0].Remaining.IsZero())
	assert.True(t, summaries[0].LateFee.IsZero())
	assert.True(t, summaries[0].TotalDue.IsZero())

	// Partial, overdue: 600 remaining + 50 fee
	assert.True(t, summaries[1].Remaining.Equal(ledger.MustDecimal("600")))
	assert.True(t, summaries[1].LateFee.Equal(ledger.MustDecimal("50")))
	assert.True(t, summaries[1].TotalDue.Equal(ledger.MustDecimal("650")))

	// Due today: no fee yet
	assert.True(t, summaries[2].Remaining.Equal(ledger.MustDecimal("1000")))
	assert.True(t, summaries[2].LateFee.IsZero())
	assert.True(t, summaries[2].TotalDue.Equal(ledger.MustDecimal("1000")))
}

func TestCurrentBalance_SumsLiveTotals(t *testing.T) {
	// GIVEN: The same mixed ledger
	// WHEN: Computing the lease balance
	// THEN: 0 + 650 + 1000 = 1650.00

	feeType := ledger.FeeFixed
	lease := &ledger.Lease{
		ID:           "lease-1",
		LateFeeType:  &feeType,
		LateFeeValue: ledger.MustDecimal("50"),
	}
	entries := []ledger.Entry{
		{TotalAmount: ledger.MustDecimal("1000"), PaidAmount: ledger.MustDecimal("1000"), DueDate: ledger.Date(2026, time.January, 1)},
		{TotalAmount: ledger.MustDecimal("1000"), PaidAmount: ledger.MustDecimal("400"), DueDate: ledger.Date(2026, time.February, 1)},
		{TotalAmount: ledger.MustDecimal("1000"), PaidAmount: ledger.MustDecimal("0"), DueDate: ledger.Date(2026, time.March, 10)},
	}

	balance := ledger.CurrentBalance(lease, entries, ledger.Date(2026, time.March, 10))

	assert.True(t, balance.Equal(ledger.MustDecimal("1650")), "got %s", balance)
}

func TestCurrentBalance_EmptyLedgerIsZero(t *testing.T) {
	// GIVEN: A lease with no entries
	// WHEN: Computing the balance
	// THEN: Zero

	lease := &ledger.Lease{ID: "lease-1"}

	assert.True(t, ledger.CurrentBalance(lease, nil, ledger.Date(2026, time.January, 1)).IsZero())
}

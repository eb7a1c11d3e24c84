/*
Package ledger provides the rent ledger and late-fee engine.

PURPOSE:
  This package contains the domain types and algorithms for billing active
  leases: generating one ledger entry per billing period, computing the
  amount currently owed (including late fees that accrue with wall-clock
  time), and applying payments to entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Lease: The billing configuration for a tenancy (rent, due day, fee rule)
  - Entry: One billing period's ledger record (base, fee, paid, status)
  - Closed enums: lease status, entry status, late-fee type, payment method

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Snapshots are explicit: Entry.TotalAmount is a point-in-time cache;
     the live figure is always CurrentTotalOwed (see latefee.go)
  3. Closed enums: unknown stored values are rejected at the data boundary,
     not at arbitrary call sites
  4. Type Safety: Strong typing for IDs prevents mixing lease/entry IDs

SEE ALSO:
  - latefee.go: Pure fee and amount-owed calculations
  - generator.go: Idempotent per-period invoice creation
  - payment.go: Payment application and status transitions
  - store.go: Persistence interfaces
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LeaseID string
type EntryID string

// =============================================================================
// LEASE STATUS
// =============================================================================

type LeaseStatus string

const (
	LeaseActive     LeaseStatus = "active"
	LeaseEnded      LeaseStatus = "ended"
	LeaseTerminated LeaseStatus = "terminated"
)

// ParseLeaseStatus validates a stored status string.
func ParseLeaseStatus(s string) (LeaseStatus, error) {
	switch LeaseStatus(s) {
	case LeaseActive, LeaseEnded, LeaseTerminated:
		return LeaseStatus(s), nil
	}
	return "", fmt.Errorf("%w: lease status %q", ErrUnknownEnumValue, s)
}

// =============================================================================
// LATE FEE TYPE
// =============================================================================

type LateFeeType string

const (
	// FeeFixed charges LateFeeValue once, independent of days late.
	FeeFixed LateFeeType = "fixed"

	// FeeDaily charges remaining * LateFeeValue per chargeable day.
	FeeDaily LateFeeType = "daily"

	// FeePercentage charges remaining * LateFeeValue once.
	FeePercentage LateFeeType = "percentage"
)

// ParseLateFeeType validates a stored fee type string.
func ParseLateFeeType(s string) (LateFeeType, error) {
	switch LateFeeType(s) {
	case FeeFixed, FeeDaily, FeePercentage:
		return LateFeeType(s), nil
	}
	return "", fmt.Errorf("%w: late fee type %q", ErrUnknownEnumValue, s)
}

// =============================================================================
// LEASE - Billing configuration (immutable from this engine's perspective)
// =============================================================================

// Lease carries the billing terms for one tenancy. The engine reads leases
// but never mutates them; lease CRUD belongs to an external collaborator.
type Lease struct {
	ID         LeaseID
	PropertyID string // opaque reference, property CRUD is out of scope
	TenantID   string // opaque reference

	MonthlyRent decimal.Decimal
	StartDate   time.Time // date (UTC midnight), anchor for the first period
	EndDate     *time.Time
	Status      LeaseStatus

	// RentDueDay is stored for display but does NOT anchor due dates:
	// each due date is the previous one plus a calendar month, starting
	// from StartDate. Observed behavior, kept as-is.
	RentDueDay      int
	GracePeriodDays int

	// LateFeeType and LateFeeValue are required together for fee accrual;
	// a nil type means no fee ever accrues regardless of LateFeeValue.
	LateFeeType  *LateFeeType
	LateFeeValue decimal.Decimal
	LateFeeCap   *decimal.Decimal

	CreatedAt time.Time
}

// IsActive reports whether the scheduler should bill this lease.
func (l *Lease) IsActive() bool { return l.Status == LeaseActive }

// =============================================================================
// ENTRY STATUS - Forward-only state machine (see payment.go)
// =============================================================================

type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusPartial EntryStatus = "partial"
	StatusPaid    EntryStatus = "paid"

	// StatusOverdue and StatusFailed are never set by the payment path;
	// they are operator overrides only. Lateness is visible through
	// CurrentTotalOwed, not through a stored status flip.
	StatusOverdue EntryStatus = "overdue"
	StatusFailed  EntryStatus = "failed"
)

// ParseEntryStatus validates a stored status string.
func ParseEntryStatus(s string) (EntryStatus, error) {
	switch EntryStatus(s) {
	case StatusPending, StatusPartial, StatusPaid, StatusOverdue, StatusFailed:
		return EntryStatus(s), nil
	}
	return "", fmt.Errorf("%w: entry status %q", ErrUnknownEnumValue, s)
}

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCreditCard   PaymentMethod = "credit_card"
)

// ParsePaymentMethod validates a stored method string.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodCash, MethodBankTransfer, MethodCreditCard:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("%w: payment method %q", ErrUnknownEnumValue, s)
}

// =============================================================================
// ENTRY - One billing period's ledger record
// =============================================================================

// Entry is one billing period for a lease. Created once by the Generator,
// then mutated only by payment application (PaidAmount, PaymentMethod,
// Status, PaidAt) or by fee recomputation (LateFeeAmount, TotalAmount).
type Entry struct {
	ID      EntryID
	LeaseID LeaseID

	// BaseAmount snapshots MonthlyRent at creation; it is never re-read
	// from the lease.
	BaseAmount decimal.Decimal

	// LateFeeAmount is the last-computed accrued fee. It is a cache: the
	// authoritative current value is AccruedFee(lease, DueDate, remaining, now).
	LateFeeAmount decimal.Decimal

	// TotalAmount = remaining-at-write + LateFeeAmount, snapshotted at
	// creation and on payment application. NOT kept in sync with time.
	// Callers needing the live figure must use CurrentTotalOwed.
	TotalAmount decimal.Decimal

	// PaidAmount is monotonically non-decreasing. Overpayment is accepted;
	// remaining is floored at zero, excess is absorbed without credit.
	PaidAmount decimal.Decimal

	DueDate time.Time // date (UTC midnight)
	PaidAt  *time.Time

	Status        EntryStatus
	PaymentMethod *PaymentMethod

	// ReferenceID is globally unique, format RENT-YYYYMMDD-XXXX.
	ReferenceID string
	Notes       string

	CreatedAt time.Time
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for constants in tests and seed data.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

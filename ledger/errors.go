/*
errors.go - Centralized error types for the rent ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Client errors - Invalid input (non-positive payment, unknown enum)
  2. Skip outcomes - Duplicate billing period (designed no-op, not a fault)
  3. Store errors - Persistence-level failures

SEE ALSO:
  - generator.go: Treats ErrDuplicatePeriod as the designed skip path
  - payment.go: Rejects with InvalidPaymentAmountError before any mutation
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPaymentAmount is returned when a non-positive amount is
	// applied to an entry. The entry is not mutated.
	ErrInvalidPaymentAmount = errors.New("payment amount must be positive")

	// ErrDuplicatePeriod is returned by stores when an entry already exists
	// for a lease's (year, month) billing period. The generator treats it
	// as the designed skip outcome, never as a failure.
	ErrDuplicatePeriod = errors.New("ledger entry already exists for billing period")

	// ErrDuplicateReferenceID is returned when a generated reference ID
	// collides with an existing one. Handled by regenerate-and-retry.
	ErrDuplicateReferenceID = errors.New("duplicate reference id")

	// ErrReferenceIDExhausted is returned when reference-ID retries run out.
	// Callers should treat it like any other persistence failure.
	ErrReferenceIDExhausted = errors.New("could not generate unique reference id")

	// ErrLeaseNotFound is returned when a referenced lease doesn't exist.
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrUnknownEnumValue is returned when a stored string does not map to
	// a closed enum (status, fee type, payment method).
	ErrUnknownEnumValue = errors.New("unknown enum value")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPaymentAmountError reports the rejected amount.
type InvalidPaymentAmountError struct {
	EntryID EntryID
	Amount  decimal.Decimal
}

func (e *InvalidPaymentAmountError) Error() string {
	return fmt.Sprintf("invalid payment of %s on entry %s: amount must be positive",
		e.Amount.String(), e.EntryID)
}

func (e *InvalidPaymentAmountError) Unwrap() error {
	return ErrInvalidPaymentAmount
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPaymentAmount) ||
		errors.Is(err, ErrUnknownEnumValue)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLeaseNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

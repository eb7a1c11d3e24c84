/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Monetary amounts cross the wire as decimal strings ("1050.00"), never
  floats. Requests parse them with decimal.NewFromString; responses format
  with StringFixed(2).

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types these map from
*/
package api

import (
	"time"

	"github.com/warp/rent-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LeaseDTO represents a lease in API responses.
type LeaseDTO struct {
	ID              string  `json:"id"`
	PropertyID      string  `json:"property_id,omitempty"`
	TenantID        string  `json:"tenant_id,omitempty"`
	MonthlyRent     string  `json:"monthly_rent"`
	StartDate       string  `json:"start_date"`
	EndDate         *string `json:"end_date,omitempty"`
	Status          string  `json:"status"`
	RentDueDay      int     `json:"rent_due_day"`
	GracePeriodDays int     `json:"grace_period_days"`
	LateFeeType     *string `json:"late_fee_type,omitempty"`
	LateFeeValue    string  `json:"late_fee_value"`
	LateFeeCap      *string `json:"late_fee_cap,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// LeaseDetailDTO is the lease plus its live balance.
type LeaseDetailDTO struct {
	LeaseDTO
	CurrentBalance string `json:"current_balance"`
	AsOf           string `json:"as_of"`
}

// CreateLeaseRequest is the request to create a lease.
type CreateLeaseRequest struct {
	ID              string  `json:"id,omitempty"` // generated when empty
	PropertyID      string  `json:"property_id"`
	TenantID        string  `json:"tenant_id"`
	MonthlyRent     string  `json:"monthly_rent"`
	StartDate       string  `json:"start_date"` // YYYY-MM-DD
	EndDate         *string `json:"end_date,omitempty"`
	Status          string  `json:"status,omitempty"` // defaults to active
	RentDueDay      int     `json:"rent_due_day"`
	GracePeriodDays int     `json:"grace_period_days"`
	LateFeeType     *string `json:"late_fee_type,omitempty"`
	LateFeeValue    string  `json:"late_fee_value,omitempty"`
	LateFeeCap      *string `json:"late_fee_cap,omitempty"`
}

// EntryDTO represents a ledger entry in API responses. The stored amounts
// are snapshots; the live figures ride alongside in LedgerLineDTO.
type EntryDTO struct {
	ID            string  `json:"id"`
	LeaseID       string  `json:"lease_id"`
	BaseAmount    string  `json:"base_amount"`
	LateFeeAmount string  `json:"late_fee_amount"`
	TotalAmount   string  `json:"total_amount"`
	PaidAmount    string  `json:"paid_amount"`
	DueDate       string  `json:"due_date"`
	PaidAt        *string `json:"paid_at,omitempty"`
	Status        string  `json:"status"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	ReferenceID   string  `json:"reference_id"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// LedgerLineDTO is one entry with its live-derived amounts.
type LedgerLineDTO struct {
	Entry     EntryDTO `json:"entry"`
	Remaining string   `json:"remaining"`
	LateFee   string   `json:"late_fee"`
	TotalDue  string   `json:"total_due"`
}

// LedgerDTO is a lease's full ledger view.
type LedgerDTO struct {
	LeaseID        string          `json:"lease_id"`
	Lines          []LedgerLineDTO `json:"lines"`
	CurrentBalance string          `json:"current_balance"`
	AsOf           string          `json:"as_of"`
}

// RecordPaymentRequest is the request to apply a payment to an entry.
type RecordPaymentRequest struct {
	Amount string  `json:"amount"`
	Method *string `json:"method,omitempty"` // cash | bank_transfer | credit_card
	Notes  string  `json:"notes,omitempty"`
}

// OverrideStatusRequest is the admin request to force an entry's status.
type OverrideStatusRequest struct {
	Status string `json:"status"`
}

// BillResultDTO is the outcome of a single-lease billing attempt.
type BillResultDTO struct {
	Outcome string    `json:"outcome"` // created | too_early | already_billed
	Entry   *EntryDTO `json:"entry,omitempty"`
}

// BillingRunDTO summarizes a batch billing run across all active leases.
type BillingRunDTO struct {
	Leases        int    `json:"leases"`
	Created       int    `json:"created"`
	TooEarly      int    `json:"too_early"`
	AlreadyBilled int    `json:"already_billed"`
	Failed        int    `json:"failed"`
	StartedAt     string `json:"started_at"`
	Duration      string `json:"duration"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLeaseDTO(l ledger.Lease) LeaseDTO {
	dto := LeaseDTO{
		ID:              string(l.ID),
		PropertyID:      l.PropertyID,
		TenantID:        l.TenantID,
		MonthlyRent:     l.MonthlyRent.StringFixed(2),
		StartDate:       l.StartDate.Format("2006-01-02"),
		Status:          string(l.Status),
		RentDueDay:      l.RentDueDay,
		GracePeriodDays: l.GracePeriodDays,
		LateFeeValue:    l.LateFeeValue.String(),
		CreatedAt:       l.CreatedAt.Format(time.RFC3339),
	}
	if l.EndDate != nil {
		d := l.EndDate.Format("2006-01-02")
		dto.EndDate = &d
	}
	if l.LateFeeType != nil {
		t := string(*l.LateFeeType)
		dto.LateFeeType = &t
	}
	if l.LateFeeCap != nil {
		c := l.LateFeeCap.StringFixed(2)
		dto.LateFeeCap = &c
	}
	return dto
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:            string(e.ID),
		LeaseID:       string(e.LeaseID),
		BaseAmount:    e.BaseAmount.StringFixed(2),
		LateFeeAmount: e.LateFeeAmount.StringFixed(2),
		TotalAmount:   e.TotalAmount.StringFixed(2),
		PaidAmount:    e.PaidAmount.StringFixed(2),
		DueDate:       e.DueDate.Format("2006-01-02"),
		Status:        string(e.Status),
		ReferenceID:   e.ReferenceID,
		Notes:         e.Notes,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if e.PaidAt != nil {
		t := e.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &t
	}
	if e.PaymentMethod != nil {
		m := string(*e.PaymentMethod)
		dto.PaymentMethod = &m
	}
	return dto
}

func toLedgerLineDTOs(summaries []ledger.EntrySummary) []LedgerLineDTO {
	lines := make([]LedgerLineDTO, len(summaries))
	for i, s := range summaries {
		lines[i] = LedgerLineDTO{
			Entry:     toEntryDTO(s.Entry),
			Remaining: s.Remaining.StringFixed(2),
			LateFee:   s.LateFee.StringFixed(2),
			TotalDue:  s.TotalDue.StringFixed(2),
		}
	}
	return lines
}

/*
handlers.go - HTTP API handlers for the rent ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Leases:
    GET    /api/leases                 List all leases
    POST   /api/leases                 Create lease
    GET    /api/leases/{id}            Get lease with current balance
    GET    /api/leases/{id}/ledger     Full ledger with live amounts
    POST   /api/leases/{id}/bill       Generate the next invoice now

  Entries:
    GET    /api/entries/{id}           Get a ledger entry
    POST   /api/entries/{id}/payments  Record a payment
    POST   /api/entries/{id}/status    Force an entry status (admin)

  Admin:
    POST   /api/admin/billing/run      Run the billing batch immediately

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (generator, payment applier, summary)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (reference exhaustion)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Background billing batch
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/rent-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.TxStore
	Clock     ledger.Clock
	Generator *ledger.Generator
	Payments  *ledger.PaymentApplier
}

// NewHandler creates a new handler around the given store and clock.
func NewHandler(store ledger.TxStore, clock ledger.Clock) *Handler {
	return &Handler{
		Store:     store,
		Clock:     clock,
		Generator: ledger.NewGenerator(store, clock),
		Payments:  ledger.NewPaymentApplier(store, clock),
	}
}

// =============================================================================
// LEASE HANDLERS
// =============================================================================

// ListLeases returns all leases.
func (h *Handler) ListLeases(w http.ResponseWriter, r *http.Request) {
	leases, err := h.Store.ListLeases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leases", err)
		return
	}

	dtos := make([]LeaseDTO, len(leases))
	for i, l := range leases {
		dtos[i] = toLeaseDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLease creates a new lease.
func (h *Handler) CreateLease(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lease, err := leaseFromRequest(req, h.Clock.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lease", err)
		return
	}

	if err := h.Store.SaveLease(r.Context(), *lease); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create lease", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaseDTO(*lease))
}

// GetLease returns a lease with its live current balance.
func (h *Handler) GetLease(w http.ResponseWriter, r *http.Request) {
	id := ledger.LeaseID(chi.URLParam(r, "id"))

	lease, err := h.Store.GetLease(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get lease", err)
		return
	}
	if lease == nil {
		writeError(w, http.StatusNotFound, "Lease not found", nil)
		return
	}

	entries, err := h.Store.ListEntriesForLease(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}

	now := h.Clock.Now()
	writeJSON(w, http.StatusOK, LeaseDetailDTO{
		LeaseDTO:       toLeaseDTO(*lease),
		CurrentBalance: ledger.CurrentBalance(lease, entries, now).StringFixed(2),
		AsOf:           now.UTC().Format(time.RFC3339),
	})
}

// GetLedger returns the lease's entries with live remaining/fee/total-due
// figures. The stored amounts are snapshots; this endpoint re-derives.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := ledger.LeaseID(chi.URLParam(r, "id"))

	lease, err := h.Store.GetLease(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get lease", err)
		return
	}
	if lease == nil {
		writeError(w, http.StatusNotFound, "Lease not found", nil)
		return
	}

	entries, err := h.Store.ListEntriesForLease(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}

	now := h.Clock.Now()
	writeJSON(w, http.StatusOK, LedgerDTO{
		LeaseID:        string(id),
		Lines:          toLedgerLineDTOs(ledger.PaymentsSummary(lease, entries, now)),
		CurrentBalance: ledger.CurrentBalance(lease, entries, now).StringFixed(2),
		AsOf:           now.UTC().Format(time.RFC3339),
	})
}

// BillLease generates the next invoice for a single lease immediately.
func (h *Handler) BillLease(w http.ResponseWriter, r *http.Request) {
	id := ledger.LeaseID(chi.URLParam(r, "id"))

	lease, err := h.Store.GetLease(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get lease", err)
		return
	}
	if lease == nil {
		writeError(w, http.StatusNotFound, "Lease not found", nil)
		return
	}

	result, err := h.Generator.GenerateNextInvoice(r.Context(), lease)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ledger.ErrReferenceIDExhausted) {
			status = http.StatusConflict
		}
		writeError(w, status, "Failed to generate invoice", err)
		return
	}

	dto := BillResultDTO{Outcome: string(result.Outcome)}
	httpStatus := http.StatusOK
	if result.Entry != nil {
		e := toEntryDTO(*result.Entry)
		dto.Entry = &e
		httpStatus = http.StatusCreated
	}
	writeJSON(w, httpStatus, dto)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// GetEntry returns a single ledger entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	entry, err := h.Store.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get entry", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Entry not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// RecordPayment applies a payment to an entry.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	var method *ledger.PaymentMethod
	if req.Method != nil {
		m, err := ledger.ParsePaymentMethod(*req.Method)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment method", err)
			return
		}
		method = &m
	}

	entry, err := h.Payments.ApplyPayment(r.Context(), id, amount, method, req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// OverrideStatus force-sets an entry status. This is the only path into
// overdue and failed.
func (h *Handler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	var req OverrideStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status, err := ledger.ParseEntryStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err)
		return
	}

	entry, err := h.Payments.OverrideStatus(r.Context(), id, status)
	if err != nil {
		writeDomainError(w, "Failed to override status", err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunBilling triggers an immediate billing batch across all active leases.
func (h *Handler) RunBilling(scheduler *BillingScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := scheduler.Run(r.Context())
		writeJSON(w, http.StatusOK, BillingRunDTO{
			Leases:        summary.Leases,
			Created:       summary.Created,
			TooEarly:      summary.TooEarly,
			AlreadyBilled: summary.AlreadyBilled,
			Failed:        summary.Failed,
			StartedAt:     summary.StartedAt.UTC().Format(time.RFC3339),
			Duration:      summary.Duration.String(),
		})
	}
}

// =============================================================================
// REQUEST MAPPING AND RESPONSE HELPERS
// =============================================================================

func leaseFromRequest(req CreateLeaseRequest, now time.Time) (*ledger.Lease, error) {
	rent, err := decimal.NewFromString(req.MonthlyRent)
	if err != nil {
		return nil, err
	}

	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, err
	}

	status := ledger.LeaseActive
	if req.Status != "" {
		status, err = ledger.ParseLeaseStatus(req.Status)
		if err != nil {
			return nil, err
		}
	}

	lease := &ledger.Lease{
		ID:              ledger.LeaseID(req.ID),
		PropertyID:      req.PropertyID,
		TenantID:        req.TenantID,
		MonthlyRent:     rent,
		StartDate:       startDate,
		Status:          status,
		RentDueDay:      req.RentDueDay,
		GracePeriodDays: req.GracePeriodDays,
		LateFeeValue:    decimal.Zero,
		CreatedAt:       now,
	}
	if lease.ID == "" {
		lease.ID = ledger.LeaseID(uuid.NewString())
	}

	if req.EndDate != nil {
		endDate, err := time.ParseInLocation("2006-01-02", *req.EndDate, time.UTC)
		if err != nil {
			return nil, err
		}
		lease.EndDate = &endDate
	}
	if req.LateFeeType != nil {
		t, err := ledger.ParseLateFeeType(*req.LateFeeType)
		if err != nil {
			return nil, err
		}
		lease.LateFeeType = &t
	}
	if req.LateFeeValue != "" {
		lease.LateFeeValue, err = decimal.NewFromString(req.LateFeeValue)
		if err != nil {
			return nil, err
		}
	}
	if req.LateFeeCap != nil {
		c, err := decimal.NewFromString(*req.LateFeeCap)
		if err != nil {
			return nil, err
		}
		lease.LateFeeCap = &c
	}

	return lease, nil
}

// writeDomainError maps ledger errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

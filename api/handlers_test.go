/*
handlers_test.go - HTTP-level tests for the ledger API

Exercises the full request path (router, handlers, domain logic) against
the in-memory store with a fixed clock.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-ledger/api"
	"github.com/warp/rent-ledger/ledger"
	"github.com/warp/rent-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	store  *store.TxMemory
	clock  ledger.FixedClock
}

func newTestServer(t *testing.T, now time.Time) *testServer {
	t.Helper()
	mem := store.NewTxMemory()
	clock := ledger.FixedClock{T: now}
	handler := api.NewHandler(mem, clock)

	log := newQuietLogger()
	scheduler := api.NewBillingScheduler(mem, clock, log)

	return &testServer{
		router: api.NewRouter(handler, scheduler),
		store:  mem,
		clock:  clock,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// =============================================================================
// LEASE ENDPOINTS
// =============================================================================

func TestAPI_CreateAndGetLease(t *testing.T) {
	// GIVEN: A running server
	// WHEN: Creating a lease and fetching it back
	// THEN: 201 then 200, with the billing fields intact and a zero balance

	ts := newTestServer(t, ledger.Date(2026, time.January, 1))

	rec := ts.do(t, http.MethodPost, "/api/leases", api.CreateLeaseRequest{
		ID:              "lease-1",
		PropertyID:      "prop-1",
		TenantID:        "tenant-1",
		MonthlyRent:     "1000",
		StartDate:       "2026-02-15",
		RentDueDay:      15,
		GracePeriodDays: 5,
		LateFeeType:     strPtr("percentage"),
		LateFeeValue:    "0.05",
		LateFeeCap:      strPtr("100"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/leases/lease-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[api.LeaseDetailDTO](t, rec)
	assert.Equal(t, "lease-1", got.ID)
	assert.Equal(t, "1000.00", got.MonthlyRent)
	assert.Equal(t, "2026-02-15", got.StartDate)
	assert.Equal(t, "active", got.Status)
	require.NotNil(t, got.LateFeeType)
	assert.Equal(t, "percentage", *got.LateFeeType)
	assert.Equal(t, "0.00", got.CurrentBalance)
}

func TestAPI_CreateLeaseRejectsBadInput(t *testing.T) {
	// GIVEN: A running server
	// WHEN: Posting a lease with a malformed rent and an unknown fee type
	// THEN: 400 both times

	ts := newTestServer(t, ledger.Date(2026, time.January, 1))

	rec := ts.do(t, http.MethodPost, "/api/leases", api.CreateLeaseRequest{
		MonthlyRent: "not-a-number",
		StartDate:   "2026-02-15",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/leases", api.CreateLeaseRequest{
		MonthlyRent: "1000",
		StartDate:   "2026-02-15",
		LateFeeType: strPtr("compound"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetMissingLease(t *testing.T) {
	ts := newTestServer(t, ledger.Date(2026, time.January, 1))

	rec := ts.do(t, http.MethodGet, "/api/leases/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// BILLING AND PAYMENT FLOW
// =============================================================================

func TestAPI_BillThenPayFlow(t *testing.T) {
	// GIVEN: An active lease whose start date has arrived
	// WHEN: Billing it, paying partially, then settling
	// THEN: Entry walks pending -> partial -> paid over the API

	ts := newTestServer(t, ledger.Date(2026, time.February, 15))

	rec := ts.do(t, http.MethodPost, "/api/leases", api.CreateLeaseRequest{
		ID:          "lease-1",
		MonthlyRent: "1000",
		StartDate:   "2026-02-15",
		RentDueDay:  15,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Bill
	rec = ts.do(t, http.MethodPost, "/api/leases/lease-1/bill", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decode[api.BillResultDTO](t, rec)
	assert.Equal(t, "created", bill.Outcome)
	require.NotNil(t, bill.Entry)
	assert.Equal(t, "pending", bill.Entry.Status)
	assert.Equal(t, "2026-02-15", bill.Entry.DueDate)

	entryID := bill.Entry.ID

	// Re-billing the same day skips
	rec = ts.do(t, http.MethodPost, "/api/leases/lease-1/bill", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "too_early", decode[api.BillResultDTO](t, rec).Outcome)

	// Partial payment
	rec = ts.do(t, http.MethodPost, "/api/entries/"+entryID+"/payments", api.RecordPaymentRequest{
		Amount: "600",
		Method: strPtr("cash"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := decode[api.EntryDTO](t, rec)
	assert.Equal(t, "partial", entry.Status)
	assert.Equal(t, "600.00", entry.PaidAmount)

	// Settle
	rec = ts.do(t, http.MethodPost, "/api/entries/"+entryID+"/payments", api.RecordPaymentRequest{
		Amount: "400",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	entry = decode[api.EntryDTO](t, rec)
	assert.Equal(t, "paid", entry.Status)
	assert.NotNil(t, entry.PaidAt)
	require.NotNil(t, entry.PaymentMethod)
	assert.Equal(t, "cash", *entry.PaymentMethod)
}

func TestAPI_PaymentValidation(t *testing.T) {
	// GIVEN: A billed lease
	// WHEN: Paying a non-positive amount, an unknown method, or a missing entry
	// THEN: 400, 400, 404

	ts := newTestServer(t, ledger.Date(2026, time.February, 15))
	ts.do(t, http.MethodPost, "/api/leases", api.CreateLeaseRequest{
		ID: "lease-1", MonthlyRent: "1000", StartDate: "2026-02-15",
	})
	rec := ts.do(t, http.MethodPost, "/api/leases/lease-1/bill", nil)
	entryID := decode[api.BillResultDTO](t, rec).Entry.ID

	rec = ts.do(t, http.MethodPost, "/api/entries/"+entryID+"/payments", api.RecordPaymentRequest{Amount: "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/entries/"+entryID+"/payments", api.RecordPaymentRequest{
		Amount: "100", Method: strPtr("barter"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/entries/missing/payments", api.RecordPaymentRequest{Amount: "100"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_StatusOverride(t *testing.T) {
	// GIVEN: A billed lease
	// WHEN: An operator forces the entry overdue
	// THEN: The override sticks; unknown statuses are rejected

	ts := newTestServer(t, ledger.Date(2026, time.February, 15))
	ts.do(t, http.MethodPost, "/api/leases", api.CreateLeaseRequest{
		ID: "lease-1", MonthlyRent: "1000", StartDate: "2026-02-15",
	})
	rec := ts.do(t, http.MethodPost, "/api/leases/lease-1/bill", nil)
	entryID := decode[api.BillResultDTO](t, rec).Entry.ID

	rec = ts.do(t, http.MethodPost, "/api/entries/"+entryID+"/status", api.OverrideStatusRequest{Status: "overdue"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "overdue", decode[api.EntryDTO](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/api/entries/"+entryID+"/status", api.OverrideStatusRequest{Status: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LEDGER VIEW
// =============================================================================

func TestAPI_LedgerShowsLiveAmounts(t *testing.T) {
	// GIVEN: A lease with a fixed 50.00 fee billed on its due date, viewed
	//        well past due
	// WHEN: Fetching the ledger
	// THEN: The line's live late fee and total due reflect today, while the
	//       stored entry snapshot stays at the base amount

	due := ledger.Date(2026, time.February, 15)
	ts := newTestServer(t, due)
	ts.do(t, http.MethodPost, "/api/leases", api.CreateLeaseRequest{
		ID:           "lease-1",
		MonthlyRent:  "1000",
		StartDate:    "2026-02-15",
		LateFeeType:  strPtr("fixed"),
		LateFeeValue: "50",
	})
	rec := ts.do(t, http.MethodPost, "/api/leases/lease-1/bill", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// A second server over the same store, two weeks later
	laterClock := ledger.FixedClock{T: ledger.Date(2026, time.March, 1)}
	later := &testServer{
		store: ts.store,
		clock: laterClock,
		router: api.NewRouter(
			api.NewHandler(ts.store, laterClock),
			api.NewBillingScheduler(ts.store, laterClock, newQuietLogger()),
		),
	}

	rec = later.do(t, http.MethodGet, "/api/leases/lease-1/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[api.LedgerDTO](t, rec)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "1000.00", got.Lines[0].Entry.TotalAmount, "stored snapshot untouched")
	assert.Equal(t, "50.00", got.Lines[0].LateFee)
	assert.Equal(t, "1050.00", got.Lines[0].TotalDue)
	assert.Equal(t, "1050.00", got.CurrentBalance)
}

// =============================================================================
// ADMIN BATCH
// =============================================================================

func TestAPI_AdminBillingRun(t *testing.T) {
	// GIVEN: Two due leases and one future lease
	// WHEN: Triggering the batch endpoint
	// THEN: Two created, one too-early

	ts := newTestServer(t, ledger.Date(2026, time.February, 1))
	for _, req := range []api.CreateLeaseRequest{
		{ID: "lease-1", MonthlyRent: "1000", StartDate: "2026-02-01"},
		{ID: "lease-2", MonthlyRent: "800", StartDate: "2026-01-15"},
		{ID: "lease-3", MonthlyRent: "900", StartDate: "2026-06-01"},
	} {
		rec := ts.do(t, http.MethodPost, "/api/leases", req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/admin/billing/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	run := decode[api.BillingRunDTO](t, rec)
	assert.Equal(t, 3, run.Leases)
	assert.Equal(t, 2, run.Created)
	assert.Equal(t, 1, run.TooEarly)
	assert.Equal(t, 0, run.Failed)
}

func strPtr(s string) *string { return &s }

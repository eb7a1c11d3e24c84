/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.TxStore using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  leases:              Billing configuration per tenancy
  rent_ledger_entries: One row per (lease, billing period)

UNIQUENESS ENFORCEMENT:
  Two unique indexes back the engine's invariants:
  - idx_entries_lease_period on (lease_id, year-month of due_date):
    a second insert for the same billing period fails, which the generator
    treats as its designed skip outcome. This is what makes concurrent
    generator runs safe.
  - reference_id UNIQUE: reference collisions surface as
    ErrDuplicateReferenceID and are retried by the generator.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction, serializing the generator's check-then-insert and the
  payment applier's read-modify-write. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency
  and crash recovery.

USAGE:
  store, err := sqlite.New("./rentledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/rent-ledger/ledger"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Leases (billing terms; the engine reads these, admin surface writes them)
	CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL DEFAULT '',
		tenant_id TEXT NOT NULL DEFAULT '',
		monthly_rent TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL,
		rent_due_day INTEGER NOT NULL DEFAULT 1,
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		late_fee_type TEXT,
		late_fee_value TEXT NOT NULL DEFAULT '0',
		late_fee_cap TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leases_status ON leases(status);

	-- Rent ledger entries (one per lease per billing period)
	CREATE TABLE IF NOT EXISTS rent_ledger_entries (
		id TEXT PRIMARY KEY,
		lease_id TEXT NOT NULL REFERENCES leases(id) ON DELETE CASCADE,
		base_amount TEXT NOT NULL,
		late_fee_amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		due_date TEXT NOT NULL,
		paid_at TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_method TEXT,
		reference_id TEXT NOT NULL UNIQUE,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_lease_due
		ON rent_ledger_entries(lease_id, due_date DESC);

	-- CRITICAL: at most one entry per (lease, calendar month of due date).
	-- A losing concurrent insert fails here and becomes the generator's
	-- already-billed skip.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_lease_period
		ON rent_ledger_entries(lease_id, strftime('%Y-%m', due_date));
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query helpers
// serve plain calls and transactional calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEASE STORE (ledger.LeaseStore interface)
// =============================================================================

// SaveLease inserts or updates a lease.
func (s *Store) SaveLease(ctx context.Context, lease ledger.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLease(ctx, s.db, lease)
}

func saveLease(ctx context.Context, q dbtx, lease ledger.Lease) error {
	query := `
		INSERT INTO leases
		(id, property_id, tenant_id, monthly_rent, start_date, end_date, status,
		 rent_due_day, grace_period_days, late_fee_type, late_fee_value, late_fee_cap, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			tenant_id = excluded.tenant_id,
			monthly_rent = excluded.monthly_rent,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			rent_due_day = excluded.rent_due_day,
			grace_period_days = excluded.grace_period_days,
			late_fee_type = excluded.late_fee_type,
			late_fee_value = excluded.late_fee_value,
			late_fee_cap = excluded.late_fee_cap
	`

	createdAt := lease.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var feeType *string
	if lease.LateFeeType != nil {
		t := string(*lease.LateFeeType)
		feeType = &t
	}
	var feeCap *string
	if lease.LateFeeCap != nil {
		c := lease.LateFeeCap.String()
		feeCap = &c
	}
	var endDate *string
	if lease.EndDate != nil {
		d := lease.EndDate.Format(dateLayout)
		endDate = &d
	}

	_, err := q.ExecContext(ctx, query,
		lease.ID,
		lease.PropertyID,
		lease.TenantID,
		lease.MonthlyRent.String(),
		lease.StartDate.Format(dateLayout),
		endDate,
		lease.Status,
		lease.RentDueDay,
		lease.GracePeriodDays,
		feeType,
		lease.LateFeeValue.String(),
		feeCap,
		createdAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save lease: %w", err)
	}
	return nil
}

const leaseColumns = `id, property_id, tenant_id, monthly_rent, start_date, end_date, status,
	rent_due_day, grace_period_days, late_fee_type, late_fee_value, late_fee_cap, created_at`

// GetLease returns a lease by ID, or nil if absent.
func (s *Store) GetLease(ctx context.Context, id ledger.LeaseID) (*ledger.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLease(ctx, s.db, id)
}

func getLease(ctx context.Context, q dbtx, id ledger.LeaseID) (*ledger.Lease, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+leaseColumns+" FROM leases WHERE id = ?", id)
	lease, err := scanLease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// ListLeases returns all leases.
func (s *Store) ListLeases(ctx context.Context) ([]ledger.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryLeases(ctx, s.db, "SELECT "+leaseColumns+" FROM leases ORDER BY created_at, id")
}

// ListActiveLeases returns the leases the scheduler should bill.
func (s *Store) ListActiveLeases(ctx context.Context) ([]ledger.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryLeases(ctx, s.db,
		"SELECT "+leaseColumns+" FROM leases WHERE status = ? ORDER BY created_at, id",
		ledger.LeaseActive)
}

func queryLeases(ctx context.Context, q dbtx, query string, args ...any) ([]ledger.Lease, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leases: %w", err)
	}
	defer rows.Close()

	var leases []ledger.Lease
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		leases = append(leases, *lease)
	}
	return leases, rows.Err()
}

// scannable abstracts *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanLease(row scannable) (*ledger.Lease, error) {
	var (
		lease       ledger.Lease
		monthlyRent string
		startDate   string
		endDate     sql.NullString
		status      string
		feeType     sql.NullString
		feeValue    string
		feeCap      sql.NullString
		createdAt   string
	)

	err := row.Scan(
		&lease.ID, &lease.PropertyID, &lease.TenantID, &monthlyRent,
		&startDate, &endDate, &status,
		&lease.RentDueDay, &lease.GracePeriodDays,
		&feeType, &feeValue, &feeCap, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	lease.Status, err = ledger.ParseLeaseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("lease %s: %w", lease.ID, err)
	}
	lease.MonthlyRent, err = decimal.NewFromString(monthlyRent)
	if err != nil {
		return nil, fmt.Errorf("lease %s: bad monthly_rent: %w", lease.ID, err)
	}
	lease.LateFeeValue, err = decimal.NewFromString(feeValue)
	if err != nil {
		return nil, fmt.Errorf("lease %s: bad late_fee_value: %w", lease.ID, err)
	}
	lease.StartDate, _ = time.ParseInLocation(dateLayout, startDate, time.UTC)
	if endDate.Valid {
		d, _ := time.ParseInLocation(dateLayout, endDate.String, time.UTC)
		lease.EndDate = &d
	}
	if feeType.Valid {
		t, err := ledger.ParseLateFeeType(feeType.String)
		if err != nil {
			return nil, fmt.Errorf("lease %s: %w", lease.ID, err)
		}
		lease.LateFeeType = &t
	}
	if feeCap.Valid {
		c, err := decimal.NewFromString(feeCap.String)
		if err != nil {
			return nil, fmt.Errorf("lease %s: bad late_fee_cap: %w", lease.ID, err)
		}
		lease.LateFeeCap = &c
	}
	lease.CreatedAt, _ = time.Parse(timeLayout, createdAt)

	return &lease, nil
}

// =============================================================================
// ENTRY STORE (ledger.EntryStore interface)
// =============================================================================

// CreateEntry inserts a new ledger entry. Period and reference collisions
// map to the ledger sentinel errors.
func (s *Store) CreateEntry(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createEntry(ctx, s.db, entry)
}

func createEntry(ctx context.Context, q dbtx, entry ledger.Entry) error {
	query := `
		INSERT INTO rent_ledger_entries
		(id, lease_id, base_amount, late_fee_amount, total_amount, paid_amount,
		 due_date, paid_at, status, payment_method, reference_id, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, query,
		entry.ID,
		entry.LeaseID,
		entry.BaseAmount.String(),
		entry.LateFeeAmount.String(),
		entry.TotalAmount.String(),
		entry.PaidAmount.String(),
		entry.DueDate.Format(dateLayout),
		nullTime(entry.PaidAt),
		entry.Status,
		nullMethod(entry.PaymentMethod),
		entry.ReferenceID,
		entry.Notes,
		createdAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "idx_entries_lease_period") {
				return ledger.ErrDuplicatePeriod
			}
			return ledger.ErrDuplicateReferenceID
		}
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// SaveEntry updates an entry's mutable fields.
func (s *Store) SaveEntry(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEntry(ctx, s.db, entry)
}

func saveEntry(ctx context.Context, q dbtx, entry ledger.Entry) error {
	query := `
		UPDATE rent_ledger_entries SET
			late_fee_amount = ?,
			total_amount = ?,
			paid_amount = ?,
			paid_at = ?,
			status = ?,
			payment_method = ?,
			notes = ?
		WHERE id = ?
	`

	res, err := q.ExecContext(ctx, query,
		entry.LateFeeAmount.String(),
		entry.TotalAmount.String(),
		entry.PaidAmount.String(),
		nullTime(entry.PaidAt),
		entry.Status,
		nullMethod(entry.PaymentMethod),
		entry.Notes,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

const entryColumns = `id, lease_id, base_amount, late_fee_amount, total_amount, paid_amount,
	due_date, paid_at, status, payment_method, reference_id, notes, created_at`

// GetEntry returns an entry by ID, or nil if absent.
func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, q dbtx, id ledger.EntryID) (*ledger.Entry, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM rent_ledger_entries WHERE id = ?", id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// LatestEntryForLease returns the entry with the greatest due date.
func (s *Store) LatestEntryForLease(ctx context.Context, leaseID ledger.LeaseID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestEntryForLease(ctx, s.db, leaseID)
}

func latestEntryForLease(ctx context.Context, q dbtx, leaseID ledger.LeaseID) (*ledger.Entry, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+entryColumns+` FROM rent_ledger_entries
		 WHERE lease_id = ? ORDER BY due_date DESC, created_at DESC LIMIT 1`, leaseID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// EntryExistsForPeriod reports whether an entry exists for the calendar month.
func (s *Store) EntryExistsForPeriod(ctx context.Context, leaseID ledger.LeaseID, year int, month time.Month) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entryExistsForPeriod(ctx, s.db, leaseID, year, month)
}

func entryExistsForPeriod(ctx context.Context, q dbtx, leaseID ledger.LeaseID, year int, month time.Month) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rent_ledger_entries
		 WHERE lease_id = ? AND strftime('%Y-%m', due_date) = ?`,
		leaseID, fmt.Sprintf("%04d-%02d", year, int(month)),
	).Scan(&count)
	return count > 0, err
}

// ListEntriesForLease returns a lease's entries ordered by due date.
func (s *Store) ListEntriesForLease(ctx context.Context, leaseID ledger.LeaseID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEntriesForLease(ctx, s.db, leaseID)
}

func listEntriesForLease(ctx context.Context, q dbtx, leaseID ledger.LeaseID) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+entryColumns+` FROM rent_ledger_entries
		 WHERE lease_id = ? ORDER BY due_date ASC, created_at ASC`, leaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// ReferenceIDExists reports whether a reference ID is already taken.
func (s *Store) ReferenceIDExists(ctx context.Context, referenceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return referenceIDExists(ctx, s.db, referenceID)
}

func referenceIDExists(ctx context.Context, q dbtx, referenceID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rent_ledger_entries WHERE reference_id = ?",
		referenceID,
	).Scan(&count)
	return count > 0, err
}

func scanEntry(row scannable) (*ledger.Entry, error) {
	var (
		entry         ledger.Entry
		baseAmount    string
		lateFeeAmount string
		totalAmount   string
		paidAmount    string
		dueDate       string
		paidAt        sql.NullString
		status        string
		paymentMethod sql.NullString
		createdAt     string
	)

	err := row.Scan(
		&entry.ID, &entry.LeaseID, &baseAmount, &lateFeeAmount, &totalAmount,
		&paidAmount, &dueDate, &paidAt, &status, &paymentMethod,
		&entry.ReferenceID, &entry.Notes, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Status, err = ledger.ParseEntryStatus(status)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
	}
	entry.BaseAmount, err = decimal.NewFromString(baseAmount)
	if err != nil {
		return nil, fmt.Errorf("entry %s: bad base_amount: %w", entry.ID, err)
	}
	entry.LateFeeAmount, err = decimal.NewFromString(lateFeeAmount)
	if err != nil {
		return nil, fmt.Errorf("entry %s: bad late_fee_amount: %w", entry.ID, err)
	}
	entry.TotalAmount, err = decimal.NewFromString(totalAmount)
	if err != nil {
		return nil, fmt.Errorf("entry %s: bad total_amount: %w", entry.ID, err)
	}
	entry.PaidAmount, err = decimal.NewFromString(paidAmount)
	if err != nil {
		return nil, fmt.Errorf("entry %s: bad paid_amount: %w", entry.ID, err)
	}
	entry.DueDate, _ = time.ParseInLocation(dateLayout, dueDate, time.UTC)
	if paidAt.Valid {
		t, _ := time.Parse(timeLayout, paidAt.String)
		entry.PaidAt = &t
	}
	if paymentMethod.Valid {
		m, err := ledger.ParsePaymentMethod(paymentMethod.String)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		entry.PaymentMethod = &m
	}
	entry.CreatedAt, _ = time.Parse(timeLayout, createdAt)

	return &entry, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The store
// mutex is held for the duration, so a transaction sees no interleaved
// writes even on the shared in-process connection.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every call through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveLease(ctx context.Context, lease ledger.Lease) error {
	return saveLease(ctx, ts.tx, lease)
}

func (ts *txStore) GetLease(ctx context.Context, id ledger.LeaseID) (*ledger.Lease, error) {
	return getLease(ctx, ts.tx, id)
}

func (ts *txStore) ListLeases(ctx context.Context) ([]ledger.Lease, error) {
	return queryLeases(ctx, ts.tx, "SELECT "+leaseColumns+" FROM leases ORDER BY created_at, id")
}

func (ts *txStore) ListActiveLeases(ctx context.Context) ([]ledger.Lease, error) {
	return queryLeases(ctx, ts.tx,
		"SELECT "+leaseColumns+" FROM leases WHERE status = ? ORDER BY created_at, id",
		ledger.LeaseActive)
}

func (ts *txStore) CreateEntry(ctx context.Context, entry ledger.Entry) error {
	return createEntry(ctx, ts.tx, entry)
}

func (ts *txStore) SaveEntry(ctx context.Context, entry ledger.Entry) error {
	return saveEntry(ctx, ts.tx, entry)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) LatestEntryForLease(ctx context.Context, leaseID ledger.LeaseID) (*ledger.Entry, error) {
	return latestEntryForLease(ctx, ts.tx, leaseID)
}

func (ts *txStore) EntryExistsForPeriod(ctx context.Context, leaseID ledger.LeaseID, year int, month time.Month) (bool, error) {
	return entryExistsForPeriod(ctx, ts.tx, leaseID, year, month)
}

func (ts *txStore) ListEntriesForLease(ctx context.Context, leaseID ledger.LeaseID) ([]ledger.Entry, error) {
	return listEntriesForLease(ctx, ts.tx, leaseID)
}

func (ts *txStore) ReferenceIDExists(ctx context.Context, referenceID string) (bool, error) {
	return referenceIDExists(ctx, ts.tx, referenceID)
}

// Helper functions

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func nullMethod(m *ledger.PaymentMethod) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*m), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}

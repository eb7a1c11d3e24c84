// Package store provides an in-memory TxStore implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/rent-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	leases     map[ledger.LeaseID]ledger.Lease
	entries    map[ledger.EntryID]ledger.Entry
	periods    map[periodKey]ledger.EntryID
	references map[string]ledger.EntryID
}

type periodKey struct {
	LeaseID ledger.LeaseID
	Year    int
	Month   time.Month
}

func NewMemory() *Memory {
	return &Memory{
		leases:     make(map[ledger.LeaseID]ledger.Lease),
		entries:    make(map[ledger.EntryID]ledger.Entry),
		periods:    make(map[periodKey]ledger.EntryID),
		references: make(map[string]ledger.EntryID),
	}
}

// =============================================================================
// LEASE STORE
// =============================================================================

func (m *Memory) SaveLease(_ context.Context, lease ledger.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[lease.ID] = lease
	return nil
}

func (m *Memory) GetLease(_ context.Context, id ledger.LeaseID) (*ledger.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lease, ok := m.leases[id]
	if !ok {
		return nil, nil
	}
	return &lease, nil
}

func (m *Memory) ListLeases(_ context.Context) ([]ledger.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLeasesLocked(func(ledger.Lease) bool { return true }), nil
}

func (m *Memory) ListActiveLeases(_ context.Context) ([]ledger.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLeasesLocked(func(l ledger.Lease) bool { return l.Status == ledger.LeaseActive }), nil
}

func (m *Memory) listLeasesLocked(keep func(ledger.Lease) bool) []ledger.Lease {
	var leases []ledger.Lease
	for _, lease := range m.leases {
		if keep(lease) {
			leases = append(leases, lease)
		}
	}
	sort.Slice(leases, func(i, j int) bool { return leases[i].ID < leases[j].ID })
	return leases
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (m *Memory) CreateEntry(_ context.Context, entry ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createEntryLocked(entry)
}

func (m *Memory) createEntryLocked(entry ledger.Entry) error {
	pk := periodKey{LeaseID: entry.LeaseID, Year: entry.DueDate.Year(), Month: entry.DueDate.Month()}
	if _, exists := m.periods[pk]; exists {
		return ledger.ErrDuplicatePeriod
	}
	if _, exists := m.references[entry.ReferenceID]; exists {
		return ledger.ErrDuplicateReferenceID
	}
	m.entries[entry.ID] = entry
	m.periods[pk] = entry.ID
	m.references[entry.ReferenceID] = entry.ID
	return nil
}

func (m *Memory) SaveEntry(_ context.Context, entry ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEntryLocked(entry)
}

func (m *Memory) saveEntryLocked(entry ledger.Entry) error {
	if _, ok := m.entries[entry.ID]; !ok {
		return ledger.ErrEntryNotFound
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *Memory) LatestEntryForLease(_ context.Context, leaseID ledger.LeaseID) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.entriesForLeaseLocked(leaseID)
	if len(entries) == 0 {
		return nil, nil
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

func (m *Memory) EntryExistsForPeriod(_ context.Context, leaseID ledger.LeaseID, year int, month time.Month) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.periods[periodKey{LeaseID: leaseID, Year: year, Month: month}]
	return exists, nil
}

func (m *Memory) ListEntriesForLease(_ context.Context, leaseID ledger.LeaseID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesForLeaseLocked(leaseID), nil
}

func (m *Memory) ReferenceIDExists(_ context.Context, referenceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.references[referenceID]
	return exists, nil
}

func (m *Memory) entriesForLeaseLocked(leaseID ledger.LeaseID) []ledger.Entry {
	var entries []ledger.Entry
	for _, entry := range m.entries {
		if entry.LeaseID == leaseID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DueDate.Before(entries[j].DueDate) })
	return entries
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support. The store-wide mutex
// serializes transactions, which also gives the generator its required
// per-lease serialization for free.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a transactional view. For the memory store
// this is simulated with a snapshot + restore on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	leases     map[ledger.LeaseID]ledger.Lease
	entries    map[ledger.EntryID]ledger.Entry
	periods    map[periodKey]ledger.EntryID
	references map[string]ledger.EntryID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		leases:     make(map[ledger.LeaseID]ledger.Lease, len(tm.leases)),
		entries:    make(map[ledger.EntryID]ledger.Entry, len(tm.entries)),
		periods:    make(map[periodKey]ledger.EntryID, len(tm.periods)),
		references: make(map[string]ledger.EntryID, len(tm.references)),
	}
	for k, v := range tm.leases {
		s.leases[k] = v
	}
	for k, v := range tm.entries {
		s.entries[k] = v
	}
	for k, v := range tm.periods {
		s.periods[k] = v
	}
	for k, v := range tm.references {
		s.references[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.leases = s.leases
	tm.entries = s.entries
	tm.periods = s.periods
	tm.references = s.references
}

// txMemoryView operates on the parent's maps directly; the parent holds
// the lock for the duration of the transaction.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveLease(_ context.Context, lease ledger.Lease) error {
	tv.parent.leases[lease.ID] = lease
	return nil
}

func (tv *txMemoryView) GetLease(_ context.Context, id ledger.LeaseID) (*ledger.Lease, error) {
	lease, ok := tv.parent.leases[id]
	if !ok {
		return nil, nil
	}
	return &lease, nil
}

func (tv *txMemoryView) ListLeases(_ context.Context) ([]ledger.Lease, error) {
	return tv.parent.listLeasesLocked(func(ledger.Lease) bool { return true }), nil
}

func (tv *txMemoryView) ListActiveLeases(_ context.Context) ([]ledger.Lease, error) {
	return tv.parent.listLeasesLocked(func(l ledger.Lease) bool { return l.Status == ledger.LeaseActive }), nil
}

func (tv *txMemoryView) CreateEntry(_ context.Context, entry ledger.Entry) error {
	return tv.parent.createEntryLocked(entry)
}

func (tv *txMemoryView) SaveEntry(_ context.Context, entry ledger.Entry) error {
	return tv.parent.saveEntryLocked(entry)
}

func (tv *txMemoryView) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	entry, ok := tv.parent.entries[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (tv *txMemoryView) LatestEntryForLease(_ context.Context, leaseID ledger.LeaseID) (*ledger.Entry, error) {
	entries := tv.parent.entriesForLeaseLocked(leaseID)
	if len(entries) == 0 {
		return nil, nil
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

func (tv *txMemoryView) EntryExistsForPeriod(_ context.Context, leaseID ledger.LeaseID, year int, month time.Month) (bool, error) {
	_, exists := tv.parent.periods[periodKey{LeaseID: leaseID, Year: year, Month: month}]
	return exists, nil
}

func (tv *txMemoryView) ListEntriesForLease(_ context.Context, leaseID ledger.LeaseID) ([]ledger.Entry, error) {
	return tv.parent.entriesForLeaseLocked(leaseID), nil
}

func (tv *txMemoryView) ReferenceIDExists(_ context.Context, referenceID string) (bool, error) {
	_, exists := tv.parent.references[referenceID]
	return exists, nil
}

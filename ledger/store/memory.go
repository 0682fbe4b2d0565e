// Package store provides an in-memory ledger.TxStore for tests and demos.
package store

import (
	"context"
	"sync"

	"github.com/fuelops/backoffice/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps entries per owner key in insertion order and levels in a map.
// WithTx serializes writers and snapshots state so a failed fn rolls back
// every write, matching the SQL store's semantics.
type Memory struct {
	mu      sync.RWMutex
	entries map[ledger.OwnerKey][]ledger.Entry
	levels  map[ledger.OwnerKey]ledger.StockLevel
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[ledger.OwnerKey][]ledger.Entry),
		levels:  make(map[ledger.OwnerKey]ledger.StockLevel),
	}
}

func (m *Memory) AppendEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(e)
	return nil
}

func (m *Memory) appendLocked(e ledger.Entry) {
	m.entries[e.Owner] = append(m.entries[e.Owner], e)
}

func (m *Memory) LatestEntry(_ context.Context, owner ledger.OwnerKey) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked(owner), nil
}

// latestLocked scans for the max (EntryDate, insertion order) entry.
// Later insertion wins ties, matching the SQL store's id DESC tie-break.
func (m *Memory) latestLocked(owner ledger.OwnerKey) *ledger.Entry {
	entries := m.entries[owner]
	if len(entries) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(entries); i++ {
		if !entries[i].EntryDate.Before(entries[best].EntryDate) {
			best = i
		}
	}
	e := entries[best]
	return &e
}

func (m *Memory) Entries(_ context.Context, owner ledger.OwnerKey, limit, offset int) ([]ledger.Entry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.entries[owner]
	total := len(all)

	// Newest first.
	out := make([]ledger.Entry, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, total, nil
}

func (m *Memory) Level(_ context.Context, owner ledger.OwnerKey) (*ledger.StockLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if lvl, ok := m.levels[owner]; ok {
		return &lvl, nil
	}
	return nil, nil
}

func (m *Memory) SaveLevel(_ context.Context, lvl ledger.StockLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLevelLocked(lvl)
}

func (m *Memory) saveLevelLocked(lvl ledger.StockLevel) error {
	existing, ok := m.levels[lvl.Owner]
	if lvl.Version == 0 {
		if ok {
			return ledger.ErrConflict
		}
		lvl.Version = 1
		m.levels[lvl.Owner] = lvl
		return nil
	}
	if !ok || existing.Version != lvl.Version {
		return ledger.ErrConflict
	}
	lvl.Version = existing.Version + 1
	m.levels[lvl.Owner] = lvl
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a view of the store that buffers writes under the
// store lock; on error the snapshot is restored so no write survives.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	if err := fn(&memoryTx{parent: m}); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	entries map[ledger.OwnerKey][]ledger.Entry
	levels  map[ledger.OwnerKey]ledger.StockLevel
}

func (m *Memory) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		entries: make(map[ledger.OwnerKey][]ledger.Entry, len(m.entries)),
		levels:  make(map[ledger.OwnerKey]ledger.StockLevel, len(m.levels)),
	}
	for k, v := range m.entries {
		snap.entries[k] = append([]ledger.Entry(nil), v...)
	}
	for k, v := range m.levels {
		snap.levels[k] = v
	}
	return snap
}

func (m *Memory) restoreLocked(snap memorySnapshot) {
	m.entries = snap.entries
	m.levels = snap.levels
}

// memoryTx operates on the already-locked parent. It must not re-acquire
// the parent's mutex.
type memoryTx struct {
	parent *Memory
}

func (t *memoryTx) AppendEntry(_ context.Context, e ledger.Entry) error {
	t.parent.appendLocked(e)
	return nil
}

func (t *memoryTx) LatestEntry(_ context.Context, owner ledger.OwnerKey) (*ledger.Entry, error) {
	return t.parent.latestLocked(owner), nil
}

func (t *memoryTx) Entries(ctx context.Context, owner ledger.OwnerKey, limit, offset int) ([]ledger.Entry, int, error) {
	all := t.parent.entries[owner]
	total := len(all)
	out := make([]ledger.Entry, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, total, nil
}

func (t *memoryTx) Level(_ context.Context, owner ledger.OwnerKey) (*ledger.StockLevel, error) {
	if lvl, ok := t.parent.levels[owner]; ok {
		return &lvl, nil
	}
	return nil, nil
}

func (t *memoryTx) SaveLevel(_ context.Context, lvl ledger.StockLevel) error {
	return t.parent.saveLevelLocked(lvl)
}

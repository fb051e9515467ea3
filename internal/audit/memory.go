package audit

import (
	"sync"

	"vortex-go/internal/restore"
)

// MemoryStore keeps the journal in memory. It is useful for tests and for
// running without touching disk. This implementation is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries []restore.AuditEntry
	saves   int
}

func NewMemoryStore(entries ...restore.AuditEntry) *MemoryStore {
	return &MemoryStore{entries: append([]restore.AuditEntry{}, entries...)}
}

func (m *MemoryStore) Load() ([]restore.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]restore.AuditEntry{}, m.entries...), nil
}

func (m *MemoryStore) Save(entries []restore.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]restore.AuditEntry{}, entries...)
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }

// Compile-time check that MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

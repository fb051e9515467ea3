package restore

import (
	"fmt"
	"sync"
)

const auditTimestampLayout = "2006-01-02 15:04:05"

// AuditLog is the journal of restore points created from this machine's UI.
// It is advisory: the SystemRestore listing is authoritative for what exists.
//
// Entries are loaded from the store on first use and written back after every
// mutation. A failed write is logged and the in-memory journal stays the truth
// until the next successful save.
type AuditLog struct {
	store  AuditStore
	clock  Clock
	logger Logger

	mu      sync.Mutex
	loaded  bool
	entries []AuditEntry
}

func NewAuditLog(store AuditStore, clock Clock, logger Logger) *AuditLog {
	return &AuditLog{store: store, clock: clock, logger: logger}
}

// Load (re)reads the journal from the store. A missing or unreadable journal
// resets to empty.
func (l *AuditLog) Load() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadLocked()
}

func (l *AuditLog) loadLocked() {
	l.loaded = true
	entries, err := l.store.Load()
	if err != nil {
		l.logger.Warn("audit log unreadable, starting empty", "error", fmt.Errorf("%w: %w", ErrPersistence, err))
		l.entries = []AuditEntry{}
		return
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	l.entries = entries
}

func (l *AuditLog) ensureLoaded() {
	if !l.loaded {
		l.loadLocked()
	}
}

// Save writes the current journal to the store.
func (l *AuditLog) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()
	return l.saveLocked()
}

func (l *AuditLog) saveLocked() error {
	if err := l.store.Save(l.entries); err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
		l.logger.Error("saving audit log", "error", err)
		return err
	}
	return nil
}

// Record prepends a create entry and persists the journal. An empty
// description defaults to "User initiated".
func (l *AuditLog) Record(name, description string) AuditEntry {
	if description == "" {
		description = defaultAuditDetails
	}
	now := l.clock.Now()
	entry := AuditEntry{
		ID:          now.Unix(),
		Timestamp:   now.Format(auditTimestampLayout),
		Name:        name,
		Description: description,
		Action:      AuditActionCreate,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	l.entries = append([]AuditEntry{entry}, l.entries...)
	_ = l.saveLocked()

	l.logger.Debug("audit entry recorded", "id", entry.ID, "name", name)
	return entry
}

// Remove drops every entry with the given id and persists the journal.
// It returns how many entries were removed.
func (l *AuditLog) Remove(id int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	kept := make([]AuditEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	removed := len(l.entries) - len(kept)
	l.entries = kept
	_ = l.saveLocked()

	return removed
}

// Entries returns a copy of the journal, newest first.
func (l *AuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

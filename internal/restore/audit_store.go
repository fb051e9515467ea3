package restore

// AuditStore persists the complete audit journal as one document.
// Save replaces everything previously stored; last write wins.
type AuditStore interface {
	// Load returns the stored entries newest-first. A store that has never
	// been written returns an empty slice and no error.
	Load() ([]AuditEntry, error)

	// Save replaces the stored journal with entries.
	Save(entries []AuditEntry) error
}

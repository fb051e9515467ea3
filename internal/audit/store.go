// Package audit provides the storage backends for the audit journal.
package audit

import (
	"fmt"
	"path/filepath"

	"vortex-go/internal/config"
	"vortex-go/internal/restore"
)

// Store is a restore.AuditStore that holds resources until closed.
type Store interface {
	restore.AuditStore
	Close() error
}

// NewStoreFromConfig creates a Store implementation based on the audit config type.
func NewStoreFromConfig(cfg config.AuditConfig) (Store, error) {
	switch cfg.Type {
	case "json", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for json audit store")
		}
		return NewJSONFileStore(cfg.Path), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite audit store")
		}
		store, err := NewSQLiteStore(filepath.Join(cfg.DataDir, "audit.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown audit store type: %s", cfg.Type)
	}
}

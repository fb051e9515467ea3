package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"vortex-go/internal/audit/migrations"
	"vortex-go/internal/restore"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps the journal in an audit_entries table. Row order is kept
// in the position column so Load returns entries exactly as saved.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the audit schema. path can be ":memory:" for a throwaway journal.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating audit data directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.Check(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// OpenConnection opens and configures a SQLite connection for the journal.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; this also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}


func (s *SQLiteStore) Load() ([]restore.AuditEntry, error) {
	rows, err := s.db.Query(`SELECT id, timestamp, name, description, action
		FROM audit_entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []restore.AuditEntry{}
	for rows.Next() {
		var e restore.AuditEntry
		var action string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Name, &e.Description, &action); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = restore.AuditAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit entries: %w", err)
	}
	return entries, nil
}

// Save replaces the stored journal with entries in one transaction.
func (s *SQLiteStore) Save(entries []restore.AuditEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM audit_entries"); err != nil {
		return fmt.Errorf("clearing audit entries: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO audit_entries (position, id, timestamp, name, description, action)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.Exec(i, e.ID, e.Timestamp, e.Name, e.Description, string(e.Action)); err != nil {
			return fmt.Errorf("inserting audit entry %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing audit entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)

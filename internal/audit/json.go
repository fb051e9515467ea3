package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"vortex-go/internal/restore"
)

// JSONFileStore keeps the journal as a pretty-printed JSON array in one file.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore creates a store backed by the file at path. The file and
// its directory are created on first save.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Load reads the journal. A missing file is an empty journal.
func (s *JSONFileStore) Load() ([]restore.AuditEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []restore.AuditEntry{}, nil
		}
		return nil, fmt.Errorf("reading audit file: %w", err)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return []restore.AuditEntry{}, nil
	}

	var entries []restore.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding audit file %s: %w", s.path, err)
	}
	if entries == nil {
		entries = []restore.AuditEntry{}
	}
	return entries, nil
}

// Save replaces the file with entries, indented by four spaces, using a
// temp file and rename so a failed write leaves the previous journal intact.
func (s *JSONFileStore) Save(entries []restore.AuditEntry) error {
	if entries == nil {
		entries = []restore.AuditEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding audit entries: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-audit-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Close is a no-op.
func (s *JSONFileStore) Close() error { return nil }

// Compile-time check that JSONFileStore implements Store interface
var _ Store = (*JSONFileStore)(nil)

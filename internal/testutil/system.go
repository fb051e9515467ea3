package testutil

import (
	"sync"

	"vortex-go/internal/restore"
)

// StubPrivileges reports a fixed elevation state.
type StubPrivileges struct {
	Elevated bool
}

func (p StubPrivileges) IsElevated() bool { return p.Elevated }

// StubSystemRestore records descriptions passed to CreateRestorePoint and
// returns Err. Safe for concurrent use.
type StubSystemRestore struct {
	Err error

	mu    sync.Mutex
	calls []string
}

func (s *StubSystemRestore) CreateRestorePoint(description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, description)
	return s.Err
}

// Calls returns the descriptions received, in order.
func (s *StubSystemRestore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.calls...)
}

// Compile-time checks
var _ restore.Privileges = StubPrivileges{}
var _ restore.SystemRestoreAPI = (*StubSystemRestore)(nil)

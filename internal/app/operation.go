package app

import (
	"sync"
	"time"

	"vortex-go/internal/restore"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	opTimeLayout = "20060102T150405Z"
	opSuffixLen  = 8
)

// Operation tracks one CLI invocation or served request stream. Its ID tags
// every log line written while it runs. Concurrent handlers in serve mode
// share one Operation, so the mutable fields sit behind a mutex.
type Operation struct {
	ID      string
	Name    string
	Started time.Time

	mu         sync.Mutex
	parameters string
	status     string
}

// NewOperation creates an operation stamped with the clock's UTC time and a
// short random suffix, e.g. "20260124T163000Z-1b4e28ba".
func NewOperation(name, parameters string, clock restore.Clock, ids restore.IDGenerator) *Operation {
	started := clock.Now().UTC()
	suffix := ids.New()
	if len(suffix) > opSuffixLen {
		suffix = suffix[:opSuffixLen]
	}
	return &Operation{
		ID:         started.Format(opTimeLayout) + "-" + suffix,
		Name:       name,
		Started:    started,
		parameters: parameters,
		status:     StatusSuccess,
	}
}

func (op *Operation) Parameters() string {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.parameters
}

func (op *Operation) SetParameters(p string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.parameters = p
}

// Status returns StatusSuccess or StatusError.
func (op *Operation) Status() string {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.status = StatusError
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status() == StatusError
}

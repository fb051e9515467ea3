package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"vortex-go/internal/gateway"
	"vortex-go/internal/restore"
)

// FakeGateway answers scripts from canned responses. A response is chosen by
// the first registered fragment contained in the script. Unmatched scripts
// succeed with empty output. Safe for concurrent use.
type FakeGateway struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     []string
}

type fakeResponse struct {
	fragment string
	stdout   string
	err      error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// On answers scripts containing fragment with stdout.
func (g *FakeGateway) On(fragment, stdout string) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses = append(g.responses, fakeResponse{fragment: fragment, stdout: stdout})
	return g
}

// Fail makes scripts containing fragment return err.
func (g *FakeGateway) Fail(fragment string, err error) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses = append(g.responses, fakeResponse{fragment: fragment, err: err})
	return g
}

// Calls returns every script received, in order.
func (g *FakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.calls...)
}

// CallsContaining returns the received scripts that contain fragment.
func (g *FakeGateway) CallsContaining(fragment string) []string {
	var out []string
	for _, c := range g.Calls() {
		if strings.Contains(c, fragment) {
			out = append(out, c)
		}
	}
	return out
}

func (g *FakeGateway) lookup(script string) fakeResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, script)
	for _, r := range g.responses {
		if strings.Contains(script, r.fragment) {
			return r
		}
	}
	return fakeResponse{}
}

func (g *FakeGateway) Run(ctx context.Context, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.lookup(script).err
}

func (g *FakeGateway) RunJSON(ctx context.Context, script string) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return []json.RawMessage{}, err
	}
	r := g.lookup(script)
	if r.err != nil {
		return []json.RawMessage{}, r.err
	}
	return gateway.DecodeList([]byte(r.stdout))
}

// CommandFailure builds the error a real gateway returns for a script that
// wrote stderr and exited with status 1.
func CommandFailure(stderr string, codes ...string) error {
	return &gateway.CommandError{ExitCode: 1, Stderr: stderr, Codes: codes}
}

// ErrFake is a generic failure for stubs.
var ErrFake = errors.New("fake failure")

// Compile-time check that FakeGateway implements restore.CommandGateway
var _ restore.CommandGateway = (*FakeGateway)(nil)

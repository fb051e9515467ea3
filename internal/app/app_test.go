package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vortex-go/internal/config"
	"vortex-go/internal/restore"
	"vortex-go/internal/testutil"
)

func newTestApp(t *testing.T, elevated bool, gw *testutil.FakeGateway) (*VortexApp, *config.Config) {
	t.Helper()

	cfg := config.NewConfig(t.TempDir())
	a, err := NewVortexApp(cfg, "test", Options{
		Gateway:    gw,
		Privileges: testutil.StubPrivileges{Elevated: elevated},
		API:        &testutil.StubSystemRestore{},
		Clock:      testutil.NewStubClock(time.Date(2026, 1, 24, 16, 30, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewVortexApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, cfg
}

func TestNewVortexApp_InvalidConfig(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		cfg := config.NewConfig(t.TempDir())
		cfg.LogLevel = "chatty"
		if _, err := NewVortexApp(cfg, "test", Options{}); err == nil {
			t.Error("NewVortexApp() expected error for invalid log level")
		}
	})

	t.Run("unknown audit store", func(t *testing.T) {
		cfg := config.NewConfig(t.TempDir())
		cfg.Audit.Type = "redis"
		if _, err := NewVortexApp(cfg, "test", Options{}); err == nil {
			t.Error("NewVortexApp() expected error for unknown audit store")
		}
	})
}

func TestVortexApp_CreatePersistsAudit(t *testing.T) {
	a, cfg := newTestApp(t, true, testutil.NewFakeGateway())
	ctx := context.Background()

	res, err := a.CreateRestorePoint(ctx, "Before upgrade")
	if err != nil {
		t.Fatalf("CreateRestorePoint() error = %v", err)
	}
	if !res.OK || res.Method != restore.MethodPrimary {
		t.Fatalf("CreateRestorePoint() = %+v", res)
	}
	if a.Operation().Failed() {
		t.Error("operation marked failed after success")
	}

	data, err := os.ReadFile(cfg.Audit.Path)
	if err != nil {
		t.Fatalf("reading audit file: %v", err)
	}
	if !strings.Contains(string(data), `"name": "Before upgrade"`) {
		t.Errorf("audit file = %s", data)
	}

	if entries := a.AuditEntries(); len(entries) != 1 {
		t.Errorf("AuditEntries() has %d entries, want 1", len(entries))
	}
}

func TestVortexApp_CreateUnauthorizedFailsOperation(t *testing.T) {
	a, _ := newTestApp(t, false, testutil.NewFakeGateway())

	res, err := a.CreateRestorePoint(context.Background(), "x")
	if err != nil {
		t.Fatalf("CreateRestorePoint() error = %v", err)
	}
	if !errors.Is(res.Err, restore.ErrUnauthorized) {
		t.Errorf("Err = %v, want ErrUnauthorized", res.Err)
	}
	if !a.Operation().Failed() {
		t.Error("operation not marked failed")
	}
}

func TestVortexApp_ListAndFind(t *testing.T) {
	gw := testutil.NewFakeGateway().On("SystemRestore | Select-Object", `[
		{"SequenceNumber":3,"Description":"a","CreationTime":"20260101000000.000000-000"},
		{"SequenceNumber":4,"Description":"b","CreationTime":"20260102000000.000000-000"}
	]`)
	a, _ := newTestApp(t, true, gw)
	ctx := context.Background()

	points, err := a.ListRestorePoints(ctx)
	if err != nil || len(points) != 2 {
		t.Fatalf("ListRestorePoints() = %v, %v", points, err)
	}

	p, ok, err := a.FindRestorePoint(ctx, 3)
	if err != nil || !ok || p.Description != "a" {
		t.Errorf("FindRestorePoint(3) = %+v, %v, %v", p, ok, err)
	}
	if _, ok, _ := a.FindRestorePoint(ctx, 99); ok {
		t.Error("FindRestorePoint(99) found a point")
	}
}

func TestVortexApp_ListFailureFailsOperation(t *testing.T) {
	gw := testutil.NewFakeGateway().Fail("SystemRestore | Select-Object", testutil.CommandFailure("boom"))
	a, _ := newTestApp(t, true, gw)

	if _, err := a.ListRestorePoints(context.Background()); err == nil {
		t.Fatal("ListRestorePoints() expected error")
	}
	if !a.Operation().Failed() {
		t.Error("operation not marked failed")
	}
}

func TestVortexApp_AuditRecordRemove(t *testing.T) {
	a, _ := newTestApp(t, true, testutil.NewFakeGateway())
	ctx := context.Background()

	entry, err := a.RecordAudit(ctx, "manual", "")
	if err != nil {
		t.Fatalf("RecordAudit() error = %v", err)
	}
	n, err := a.RemoveAudit(ctx, entry.ID)
	if err != nil || n != 1 {
		t.Errorf("RemoveAudit() = %d, %v", n, err)
	}
}

func TestVortexApp_WritesLogFile(t *testing.T) {
	a, cfg := newTestApp(t, true, testutil.NewFakeGateway())

	a.CreateRestorePoint(context.Background(), "logged")
	a.Close()

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, logFileName))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), a.Operation().ID) || !strings.Contains(string(data), "restore point created") {
		t.Errorf("log = %s", data)
	}
}

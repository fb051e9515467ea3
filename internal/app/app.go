package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"vortex-go/internal/audit"
	"vortex-go/internal/config"
	"vortex-go/internal/gateway"
	"vortex-go/internal/privilege"
	"vortex-go/internal/restore"
	"vortex-go/internal/sysrestore"
)

const dispatcherBuffer = 16

// Options overrides what NewVortexApp would otherwise build from config.
// Nil fields select the production implementations.
type Options struct {
	// Echo additionally receives every log line (typically os.Stderr).
	Echo io.Writer
	// Verbose lowers the log threshold to debug.
	Verbose bool

	Gateway    restore.CommandGateway
	Privileges restore.Privileges
	API        restore.SystemRestoreAPI
	Clock      restore.Clock
}

// VortexApp is the application layer between the CLI/HTTP API and
// restore.Service. It constructs all dependencies from config, routes
// mutations through the dispatcher, and releases resources on Close.
type VortexApp struct {
	cfg        *config.Config
	store      audit.Store
	audit      *restore.AuditLog
	service    *restore.Service
	dispatcher *restore.Dispatcher
	op         *Operation
	logger     *slog.Logger
	logFile    *os.File
}

// NewVortexApp creates a fully wired VortexApp from the given config.
// operation identifies the command being run (e.g. "create", "serve").
// The caller must call Close when done.
func NewVortexApp(cfg *config.Config, operation string, opts Options) (*VortexApp, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	clock := opts.Clock
	if clock == nil {
		clock = restore.RealClock{}
	}
	op := NewOperation(operation, "", clock, restore.UUIDGenerator{})

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(cfg.BaseDir, "log")
	}
	logger, logFile, err := newLogger(logDir, op.ID, level, opts.Echo)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	store, err := audit.NewStoreFromConfig(cfg.Audit)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating audit store: %w", err)
	}

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.New(gateway.PowerShell(cfg.Gateway.Shell), cfg.Gateway.Timeout(), adapter)
	}
	privileges := opts.Privileges
	if privileges == nil {
		privileges = privilege.Checker{}
	}
	api := opts.API
	if api == nil {
		api = sysrestore.New()
	}

	auditLog := restore.NewAuditLog(store, clock, adapter)
	svc := restore.NewService(restore.Deps{
		Gateway:              gw,
		API:                  api,
		Privileges:           privileges,
		Audit:                auditLog,
		Logger:               adapter,
		CorrelationTolerance: cfg.Catalog.Tolerance(),
		NamePrefix:           cfg.NamePrefix,
	})

	logger.Debug("operation started", "operation", operation, "audit_store", cfg.Audit.Type)

	return &VortexApp{
		cfg:        cfg,
		store:      store,
		audit:      auditLog,
		service:    svc,
		dispatcher: restore.NewDispatcher(svc, dispatcherBuffer),
		op:         op,
		logger:     logger,
		logFile:    logFile,
	}, nil
}

func (a *VortexApp) Config() *config.Config { return a.cfg }
func (a *VortexApp) Logger() *slog.Logger   { return a.logger }
func (a *VortexApp) Operation() *Operation  { return a.op }

// ListRestorePoints scans restore points, newest first, reporting scan failures.
func (a *VortexApp) ListRestorePoints(ctx context.Context) ([]restore.RestorePoint, error) {
	points, err := a.service.ScanRestorePoints(ctx)
	if err != nil {
		a.op.Fail()
		return nil, err
	}
	return points, nil
}

// CreateRestorePoint creates a restore point; an empty name is generated.
func (a *VortexApp) CreateRestorePoint(ctx context.Context, name string) (restore.Result, error) {
	a.op.SetParameters(name)
	res, err := a.dispatcher.DoCreate(ctx, name)
	if err != nil || !res.OK {
		a.op.Fail()
	}
	return res, err
}

// DeleteRestorePoint deletes the restore point selected by ids.
func (a *VortexApp) DeleteRestorePoint(ctx context.Context, ids restore.Identifiers) (restore.Result, error) {
	res, err := a.dispatcher.DoDelete(ctx, ids)
	if err != nil || !res.OK {
		a.op.Fail()
	}
	return res, err
}

// FindRestorePoint returns the listed point with the given sequence number.
func (a *VortexApp) FindRestorePoint(ctx context.Context, seq int64) (restore.RestorePoint, bool, error) {
	points, err := a.ListRestorePoints(ctx)
	if err != nil {
		return restore.RestorePoint{}, false, err
	}
	for _, p := range points {
		if p.SequenceNumber == seq {
			return p, true, nil
		}
	}
	return restore.RestorePoint{}, false, nil
}

// StorageSummary reports shadow storage usage per volume.
func (a *VortexApp) StorageSummary(ctx context.Context) restore.StorageSummary {
	return a.service.GetStorageSummary(ctx)
}

// AuditEntries returns the audit journal, newest first.
func (a *VortexApp) AuditEntries() []restore.AuditEntry {
	return a.service.GetAuditLog()
}

// RecordAudit appends an entry to the audit journal.
func (a *VortexApp) RecordAudit(ctx context.Context, name, description string) (restore.AuditEntry, error) {
	return a.dispatcher.DoRecordAudit(ctx, name, description)
}

// RemoveAudit deletes audit entries with the given id.
func (a *VortexApp) RemoveAudit(ctx context.Context, id int64) (int, error) {
	return a.dispatcher.DoDeleteAuditEntry(ctx, id)
}

// Close drains the dispatcher and closes the audit store and log file.
func (a *VortexApp) Close() error {
	var firstErr error

	a.dispatcher.Close()

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing audit store: %w", err)
	}

	a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status())

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

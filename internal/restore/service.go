package restore

import (
	"context"
	"time"
)

// Service is the surface offered to presentation layers (CLI, HTTP API, GUI).
// Every method blocks on the OS and is meant to run off any interactive
// thread; Dispatcher does that for callers that want events.
type Service struct {
	catalog    *Catalog
	operator   *Operator
	accountant *Accountant
	audit      *AuditLog
}

// Deps groups what NewService wires together.
type Deps struct {
	Gateway    CommandGateway
	API        SystemRestoreAPI
	Privileges Privileges
	Audit      *AuditLog
	Logger     Logger

	CorrelationTolerance time.Duration
	NamePrefix           string
}

// NewService builds the catalog, operator and accountant around one gateway.
func NewService(d Deps) *Service {
	catalog := NewCatalog(d.Gateway, d.Logger, d.CorrelationTolerance, d.NamePrefix)
	return &Service{
		catalog:    catalog,
		operator:   NewOperator(d.Gateway, d.API, d.Privileges, catalog, d.Audit, d.Logger),
		accountant: NewAccountant(d.Gateway, d.Logger),
		audit:      d.Audit,
	}
}

// ListRestorePoints returns the current restore points, newest first. It never
// fails; an empty list may also mean the scan failed.
func (s *Service) ListRestorePoints(ctx context.Context) []RestorePoint {
	return s.catalog.List(ctx)
}

// ScanRestorePoints is ListRestorePoints with the scan error exposed.
func (s *Service) ScanRestorePoints(ctx context.Context) ([]RestorePoint, error) {
	return s.catalog.Scan(ctx)
}

// CreateRestorePoint creates a restore point; an empty name is generated.
func (s *Service) CreateRestorePoint(ctx context.Context, name string) Result {
	return s.operator.Create(ctx, name)
}

// DeleteRestorePoint deletes the restore point identified by ids.
func (s *Service) DeleteRestorePoint(ctx context.Context, ids Identifiers) Result {
	return s.operator.Delete(ctx, ids)
}

// GetStorageSummary reports shadow storage usage per volume.
func (s *Service) GetStorageSummary(ctx context.Context) StorageSummary {
	return s.accountant.Summarize(ctx)
}

// GetAuditLog returns the audit journal, newest first.
func (s *Service) GetAuditLog() []AuditEntry {
	return s.audit.Entries()
}

// RecordAudit appends an entry to the audit journal.
func (s *Service) RecordAudit(name, description string) AuditEntry {
	return s.audit.Record(name, description)
}

// DeleteAuditEntry removes audit entries with the given id.
func (s *Service) DeleteAuditEntry(id int64) int {
	return s.audit.Remove(id)
}

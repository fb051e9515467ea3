package restore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Messages returned in Result.Message.
const (
	msgUnauthorized     = "Administrator privileges are required to modify restore points."
	msgCreatedPrimary   = "Restore point created."
	msgCreatedFallback  = "Restore point created (PowerShell)."
	msgDeletedShadow    = "Restore point deleted (VSS)."
	msgDeletedSequence  = "Restore point deleted (SystemRestore)."
	msgNoIdentifiers    = "Could not determine the identifiers of the restore point to delete."
	msgAccessDenied     = "Access denied. Run Vortex with administrator or SYSTEM privileges and check that antivirus or other security software is not blocking System Restore."
	defaultAuditDetails = "User initiated"
)

// accessDeniedCodes are HRESULTs that mean the OS refused the operation.
var accessDeniedCodes = []string{
	"0x80041003", // WBEM_E_ACCESS_DENIED
	"0x80070005", // E_ACCESSDENIED
}

// accessDeniedSignatures are matched against error text when no structured
// code is available. They are English-only and version-dependent.
var accessDeniedSignatures = []string{
	"access denied",
	"access is denied",
	"0x80041003",
}

// NameSource supplies a default description for new restore points.
type NameSource interface {
	GenerateNextName(ctx context.Context) string
}

// Operator creates and deletes restore points, preferring the cheaper or more
// thorough method and falling back to the alternative.
type Operator struct {
	gateway    CommandGateway
	api        SystemRestoreAPI
	privileges Privileges
	names      NameSource
	audit      *AuditLog
	logger     Logger
}

// NewOperator creates an Operator. api and audit may be nil: a nil api skips
// straight to the PowerShell method and a nil audit log records nothing.
func NewOperator(gateway CommandGateway, api SystemRestoreAPI, privileges Privileges, names NameSource, audit *AuditLog, logger Logger) *Operator {
	return &Operator{
		gateway:    gateway,
		api:        api,
		privileges: privileges,
		names:      names,
		audit:      audit,
		logger:     logger,
	}
}

// Create makes a new restore point. An empty description is replaced by a
// generated name. Without elevated privileges nothing is attempted.
func (o *Operator) Create(ctx context.Context, description string) Result {
	if !o.privileges.IsElevated() {
		return failed(ErrUnauthorized, msgUnauthorized)
	}

	if strings.TrimSpace(description) == "" {
		description = o.names.GenerateNextName(ctx)
	}

	if o.api != nil {
		err := o.api.CreateRestorePoint(description)
		if err == nil {
			o.logger.Info("restore point created", "description", description, "method", MethodPrimary)
			o.recordCreate(description)
			return succeeded(MethodPrimary, msgCreatedPrimary)
		}
		o.logger.Warn("primary restore point creation failed, falling back to PowerShell", "error", err)
	}

	if err := o.gateway.Run(ctx, checkpointScript(description)); err != nil {
		o.logger.Error("restore point creation failed", "description", description, "error", err)
		return failed(fmt.Errorf("creating restore point: %w", err), "Creation failed: "+err.Error())
	}

	o.logger.Info("restore point created", "description", description, "method", MethodPowerShell)
	o.recordCreate(description)
	return succeeded(MethodPowerShell, msgCreatedFallback)
}

func (o *Operator) recordCreate(description string) {
	if o.audit == nil {
		return
	}
	o.audit.Record(description, defaultAuditDetails)
}

// Delete removes a restore point. The shadow copy is tried first because it
// releases disk space directly; the SystemRestore entry is the fallback.
// Neither path is retried.
func (o *Operator) Delete(ctx context.Context, ids Identifiers) Result {
	if ids.Empty() {
		return failed(ErrNoIdentifiers, msgNoIdentifiers)
	}

	o.logger.Info("deleting restore point", "shadow_id", ids.ShadowID, "sequence", sequenceAttr(ids.SequenceNumber))

	var shadowErr error
	if ids.ShadowID != "" {
		if validShadowID(ids.ShadowID) {
			shadowErr = o.gateway.Run(ctx, deleteShadowScript(ids.ShadowID))
		} else {
			shadowErr = fmt.Errorf("invalid shadow copy id %q", ids.ShadowID)
		}
		if shadowErr == nil {
			o.logger.Info("restore point deleted", "method", MethodShadowCopy, "shadow_id", ids.ShadowID)
			return succeeded(MethodShadowCopy, msgDeletedShadow)
		}
		o.logger.Warn("shadow copy deletion failed", "shadow_id", ids.ShadowID, "error", shadowErr)
	}

	if ids.SequenceNumber == nil {
		return failed(fmt.Errorf("deleting shadow copy: %w", shadowErr), "OS error: "+shadowErr.Error())
	}

	seq := *ids.SequenceNumber
	o.logger.Info("falling back to sequence number deletion", "sequence", seq)
	err := o.gateway.Run(ctx, deleteSequenceScript(seq))
	if err == nil {
		o.logger.Info("restore point deleted", "method", MethodSequenceNumber, "sequence", seq)
		return succeeded(MethodSequenceNumber, msgDeletedSequence)
	}

	if isAccessDenied(err) {
		o.logger.Error("restore point deletion denied", "sequence", seq, "error", err)
		return failed(&accessDeniedError{cause: err}, msgAccessDenied)
	}
	o.logger.Error("restore point deletion failed", "sequence", seq, "error", err)
	return failed(fmt.Errorf("deleting restore point %d: %w", seq, err), "OS error: "+err.Error())
}

// isAccessDenied classifies err using structured codes when the gateway
// provides them and falls back to text signatures.
func isAccessDenied(err error) bool {
	var coded CodedError
	if errors.As(err, &coded) {
		for _, code := range coded.ErrorCodes() {
			for _, denied := range accessDeniedCodes {
				if strings.EqualFold(code, denied) {
					return true
				}
			}
		}
	}

	text := strings.ToLower(err.Error())
	for _, sig := range accessDeniedSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

func sequenceAttr(seq *int64) any {
	if seq == nil {
		return "none"
	}
	return *seq
}

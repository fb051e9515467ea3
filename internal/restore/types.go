package restore

import (
	"fmt"
	"sort"
	"time"
)

// UnknownDate is shown for restore points whose creation time could not be parsed.
const UnknownDate = "Unknown Date"

// RestorePoint is one System Restore checkpoint as seen by a single scan.
// A zero CreationTime means the OS timestamp was unparseable.
type RestorePoint struct {
	SequenceNumber   int64     `json:"sequenceNumber"`
	ShadowID         string    `json:"shadowId,omitempty"`
	Description      string    `json:"description"`
	CreationTime     time.Time `json:"creationTime"`
	RestorePointType int       `json:"restorePointType,omitempty"`
}

// HasShadow reports whether a shadow copy was correlated to this point.
func (p RestorePoint) HasShadow() bool {
	return p.ShadowID != ""
}

// DisplayTime renders the creation time for people.
func (p RestorePoint) DisplayTime() string {
	if p.CreationTime.IsZero() {
		return UnknownDate
	}
	return p.CreationTime.Format("02.01.2006 | 15:04")
}

// Identifiers returns the pair used by Operator.Delete for this point.
func (p RestorePoint) Identifiers() Identifiers {
	seq := p.SequenceNumber
	return Identifiers{ShadowID: p.ShadowID, SequenceNumber: &seq}
}

// Identifiers selects a restore point for deletion. Either field may be absent.
type Identifiers struct {
	ShadowID       string `json:"shadowId,omitempty"`
	SequenceNumber *int64 `json:"sequenceNumber,omitempty"`
}

// Empty reports whether no identifier is present.
func (ids Identifiers) Empty() bool {
	return ids.ShadowID == "" && ids.SequenceNumber == nil
}

// StorageSummary is the shadow-storage usage aggregated per volume.
type StorageSummary struct {
	TotalBytes int64            `json:"totalBytes"`
	PerVolume  map[string]int64 `json:"perVolume"`
}

// Volumes returns the volume labels in display order.
func (s StorageSummary) Volumes() []string {
	labels := make([]string, 0, len(s.PerVolume))
	for label := range s.PerVolume {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// GiB converts a byte count to gibibytes.
func GiB(bytes int64) float64 {
	return float64(bytes) / (1 << 30)
}

// FormatGiB renders a byte count as gibibytes with two decimals.
func FormatGiB(bytes int64) string {
	return fmt.Sprintf("%.2f GB", GiB(bytes))
}

// AuditAction names what an audit entry records.
type AuditAction string

const AuditActionCreate AuditAction = "create"

// AuditEntry is one locally initiated action in the audit journal.
type AuditEntry struct {
	ID          int64       `json:"id"`
	Timestamp   string      `json:"timestamp"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Action      AuditAction `json:"action"`
}

// Method identifies which path performed a create or delete.
type Method string

const (
	MethodNone           Method = ""
	MethodPrimary        Method = "primary"
	MethodPowerShell     Method = "powershell"
	MethodShadowCopy     Method = "shadow-copy"
	MethodSequenceNumber Method = "sequence-number"
)

// Result reports the outcome of a create or delete. Err is nil when OK is true
// and otherwise wraps one of the package sentinels.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Method  Method `json:"method,omitempty"`
	Err     error  `json:"-"`
}

func succeeded(method Method, msg string) Result {
	return Result{OK: true, Message: msg, Method: method}
}

func failed(err error, msg string) Result {
	return Result{OK: false, Message: msg, Err: err}
}

// Package sysrestore creates restore points through the System Restore client
// API (SRSetRestorePointW) instead of a scripting host.
package sysrestore

import (
	"unicode/utf16"

	"vortex-go/internal/restore"
)

const (
	beginSystemChange = 100
	endSystemChange   = 101
	modifySettings    = 12

	// maxDescW is MAX_DESC_W from SRRestorePtAPI.h, including the terminator.
	maxDescW = 256
)

// API is the in-process restore point creator.
type API struct{}

func New() *API { return &API{} }

// CreateRestorePoint opens and closes a MODIFY_SETTINGS system change, which
// leaves a restore point labelled with description.
func (a *API) CreateRestorePoint(description string) error {
	return createRestorePoint(description)
}

// encodeDescription converts description to a NUL-terminated UTF-16 buffer,
// truncating it to fit.
func encodeDescription(description string) [maxDescW]uint16 {
	var buf [maxDescW]uint16
	units := utf16.Encode([]rune(description))
	if len(units) > maxDescW-1 {
		units = units[:maxDescW-1]
		if utf16.IsSurrogate(rune(units[len(units)-1])) && units[len(units)-1] < 0xdc00 {
			units = units[:len(units)-1]
		}
	}
	copy(buf[:], units)
	return buf
}

// Compile-time check that API implements restore.SystemRestoreAPI interface
var _ restore.SystemRestoreAPI = (*API)(nil)

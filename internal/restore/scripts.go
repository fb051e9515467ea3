package restore

import (
	"fmt"
	"regexp"
	"strings"
)

// PowerShell scripts issued through the CommandGateway.
const (
	restorePointsScript = `Get-WmiObject -Namespace root\default -Class SystemRestore | ` +
		`Select-Object SequenceNumber, Description, CreationTime, RestorePointType | ConvertTo-Json -Compress`

	shadowCopiesScript = `Get-WmiObject Win32_ShadowCopy | ` +
		`Select-Object ID, InstallDate, VolumeName | ConvertTo-Json -Compress`

	shadowStorageScript = `Get-WmiObject Win32_ShadowStorage | ` +
		`Select-Object Volume, @{Name='Used'; Expression={[string]$_.UsedSpace}} | ConvertTo-Json -Compress`

	volumesScript = `Get-WmiObject Win32_Volume | Select-Object DeviceID, DriveLetter | ConvertTo-Json -Compress`
)

var shadowIDPattern = regexp.MustCompile(`^\{?[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}\}?$`)

// validShadowID reports whether id looks like a VSS shadow copy GUID.
func validShadowID(id string) bool {
	return shadowIDPattern.MatchString(id)
}

// psQuote returns s as a single-quoted PowerShell literal. PowerShell also
// treats the typographic single quotes as delimiters, so those are doubled too.
func psQuote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'', '‘', '’', '‚', '‛':
			b.WriteRune(r)
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

func checkpointScript(description string) string {
	return fmt.Sprintf("Checkpoint-Computer -Description %s -RestorePointType 'MODIFY_SETTINGS'", psQuote(description))
}

func deleteShadowScript(shadowID string) string {
	return fmt.Sprintf("$s = @(Get-WmiObject Win32_ShadowCopy | Where-Object { $_.ID -eq %[1]s }); "+
		"if ($s.Count -eq 0) { throw ('shadow copy not found: ' + %[1]s) }; "+
		"$s | ForEach-Object { $_.Delete() }", psQuote(shadowID))
}

func deleteSequenceScript(seq int64) string {
	return fmt.Sprintf("$r = @(Get-WmiObject -Namespace root\\default -Class SystemRestore | Where-Object { $_.SequenceNumber -eq %[1]d }); "+
		"if ($r.Count -eq 0) { throw 'restore point not found: %[1]d' }; "+
		"$r | ForEach-Object { $_.Delete() }", seq)
}

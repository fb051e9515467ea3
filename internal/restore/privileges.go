package restore

// Privileges answers whether the current process may modify System Restore.
type Privileges interface {
	IsElevated() bool
}

// SystemRestoreAPI is the direct in-process restore point creation path.
type SystemRestoreAPI interface {
	// CreateRestorePoint creates a restore point with the given description.
	CreateRestorePoint(description string) error
}

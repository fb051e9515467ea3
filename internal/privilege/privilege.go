package privilege

import "vortex-go/internal/restore"

// Checker reports the elevation state of the current process.
type Checker struct{}

func (Checker) IsElevated() bool { return isElevated() }

// Elevate relaunches the current executable with administrator rights,
// passing args through, and waits for it to exit. It returns the elevated
// process's exit code. Windows gives the elevated process its own console,
// so its output does not appear in the caller's terminal.
func Elevate(args []string) (int, error) { return elevate(args) }

// Compile-time check that Checker implements restore.Privileges interface
var _ restore.Privileges = Checker{}

//go:build !windows

package privilege

import (
	"errors"
	"os"
)

func isElevated() bool {
	return os.Geteuid() == 0
}

func elevate([]string) (int, error) {
	return -1, errors.New("elevation is only supported on Windows")
}

//go:build !windows

package sysrestore

import "errors"

func createRestorePoint(string) error {
	return errors.New("system restore API is only available on Windows")
}

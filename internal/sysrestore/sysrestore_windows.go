//go:build windows

package sysrestore

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modsrclient            = windows.NewLazySystemDLL("srclient.dll")
	procSRSetRestorePointW = modsrclient.NewProc("SRSetRestorePointW")
)

// restorePointInfo mirrors RESTOREPOINTINFOW. Its packed and natural layouts
// coincide.
type restorePointInfo struct {
	eventType      uint32
	restorePtType  uint32
	sequenceNumber int64
	description    [maxDescW]uint16
}

// stateMgrStatus mirrors the packed STATEMGRSTATUS: the 64-bit sequence number
// sits at offset 4, so it is kept as raw bytes.
type stateMgrStatus struct {
	status         uint32
	sequenceNumber [8]byte
}

func setRestorePoint(info *restorePointInfo) (stateMgrStatus, error) {
	var status stateMgrStatus
	ok, _, _ := procSRSetRestorePointW.Call(
		uintptr(unsafe.Pointer(info)),
		uintptr(unsafe.Pointer(&status)),
	)
	if ok == 0 {
		return status, fmt.Errorf("SRSetRestorePointW: %w", syscall.Errno(status.status))
	}
	return status, nil
}

func createRestorePoint(description string) error {
	if err := procSRSetRestorePointW.Find(); err != nil {
		return fmt.Errorf("loading srclient.dll: %w", err)
	}

	info := restorePointInfo{
		eventType:     beginSystemChange,
		restorePtType: modifySettings,
		description:   encodeDescription(description),
	}
	status, err := setRestorePoint(&info)
	if err != nil {
		return fmt.Errorf("beginning system change: %w", err)
	}

	info.eventType = endSystemChange
	info.sequenceNumber = int64(binary.LittleEndian.Uint64(status.sequenceNumber[:]))
	if _, err := setRestorePoint(&info); err != nil {
		return fmt.Errorf("ending system change: %w", err)
	}
	return nil
}

//go:build windows

package privilege

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modshell32          = windows.NewLazySystemDLL("shell32.dll")
	procShellExecuteExW = modshell32.NewProc("ShellExecuteExW")
)

const seeMaskNoCloseProcess = 0x00000040

// shellExecuteInfo mirrors SHELLEXECUTEINFOW.
type shellExecuteInfo struct {
	cbSize        uint32
	fMask         uint32
	hwnd          windows.Handle
	verb          *uint16
	file          *uint16
	parameters    *uint16
	directory     *uint16
	show          int32
	instApp       windows.Handle
	idList        uintptr
	class         *uint16
	keyClass      windows.Handle
	hotKey        uint32
	iconOrMonitor windows.Handle
	process       windows.Handle
}

func isElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func elevate(args []string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return -1, fmt.Errorf("locating executable: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return -1, fmt.Errorf("getting working directory: %w", err)
	}

	info := shellExecuteInfo{
		fMask: seeMaskNoCloseProcess,
		show:  windows.SW_NORMAL,
	}
	info.cbSize = uint32(unsafe.Sizeof(info))
	if info.verb, err = windows.UTF16PtrFromString("runas"); err != nil {
		return -1, err
	}
	if info.file, err = windows.UTF16PtrFromString(exe); err != nil {
		return -1, err
	}
	if info.parameters, err = windows.UTF16PtrFromString(windows.ComposeCommandLine(args)); err != nil {
		return -1, err
	}
	if info.directory, err = windows.UTF16PtrFromString(cwd); err != nil {
		return -1, err
	}

	ok, _, callErr := procShellExecuteExW.Call(uintptr(unsafe.Pointer(&info)))
	if ok == 0 {
		return -1, fmt.Errorf("requesting elevation: %w", callErr)
	}
	if info.process == 0 {
		return -1, fmt.Errorf("requesting elevation: no process handle returned")
	}
	defer windows.CloseHandle(info.process)

	if _, err := windows.WaitForSingleObject(info.process, windows.INFINITE); err != nil {
		return -1, fmt.Errorf("waiting for elevated process: %w", err)
	}
	var code uint32
	if err := windows.GetExitCodeProcess(info.process, &code); err != nil {
		return -1, fmt.Errorf("reading elevated exit code: %w", err)
	}
	return int(code), nil
}

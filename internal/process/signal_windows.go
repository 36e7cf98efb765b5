//go:build windows

package process

import (
	"syscall"
)

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

const (
	processTerminate        = 0x0001
	processQueryInformation = 0x0400
)

// Windows has no graceful terminate signal for GUI processes without a
// console; TERM and KILL both map to TerminateProcess.
func signalTerm(pid int) error { return terminate(pid) }
func signalKill(pid int) error { return terminate(pid) }
func killGroup(pid int) error  { return terminate(pid) }

func signalExists(pid int) bool {
	h, err := openProcess(processQueryInformation, uint32(pid))
	if err != nil {
		return false
	}
	_ = closeHandle(h)
	return true
}

func terminate(pid int) error {
	if pid <= 0 {
		return nil
	}
	h, err := openProcess(processTerminate, uint32(pid))
	if err != nil {
		// already gone
		return nil
	}
	defer func() { _ = closeHandle(h) }()
	ret, _, err := procTerminateProcess.Call(uintptr(h), uintptr(1))
	if ret == 0 {
		return err
	}
	return nil
}

func openProcess(access uint32, pid uint32) (syscall.Handle, error) {
	ret, _, err := procOpenProcess.Call(uintptr(access), 0, uintptr(pid))
	if ret == 0 {
		return 0, err
	}
	return syscall.Handle(ret), nil
}

func closeHandle(h syscall.Handle) error {
	ret, _, err := procCloseHandle.Call(uintptr(h))
	if ret == 0 {
		return err
	}
	return nil
}

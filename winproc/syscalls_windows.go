//go:build windows
// +build windows

package winproc

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// golang.org/x/sys/windows has no typed binding for these three; declared
// lazily against the system DLLs the same way this lineage already binds
// WSAPoll against ws2_32.dll.
var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procCreateRemoteThread       = modkernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread        = modkernel32.NewProc("GetExitCodeThread")
	procGetSystemWow64DirectoryW = modkernel32.NewProc("GetSystemWow64DirectoryW")
)

func createRemoteThread(process windows.Handle, startAddr, parameter uintptr) (windows.Handle, error) {
	r1, _, err := procCreateRemoteThread.Call(
		uintptr(process),
		0, // default security attributes
		0, // default stack size
		startAddr,
		parameter,
		0, // run immediately
		0, // don't need the thread id
	)
	if r1 == 0 {
		return 0, err
	}
	return windows.Handle(r1), nil
}

func getExitCodeThread(thread windows.Handle) (uint32, error) {
	var code uint32
	r1, _, err := procGetExitCodeThread.Call(uintptr(thread), uintptr(unsafe.Pointer(&code)))
	if r1 == 0 {
		return 0, err
	}
	return code, nil
}

func getSystemWow64Directory() (string, error) {
	buf := make([]uint16, windows.MAX_PATH)
	r1, _, err := procGetSystemWow64DirectoryW.Call(uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r1 == 0 {
		return "", err
	}
	return windows.UTF16ToString(buf), nil
}

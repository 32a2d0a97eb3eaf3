//go:build windows
// +build windows

// Package winproc is the concrete Windows implementation of
// syringe.ProcessRef: process/module discovery via the Toolhelp32
// snapshot API, bitness detection via IsWow64Process, and remote-thread
// execution via a hand-declared CreateRemoteThread/GetExitCodeThread
// binding (golang.org/x/sys/windows does not expose either).
package winproc

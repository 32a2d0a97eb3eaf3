//go:build windows
// +build windows

// Package remoteio implements procmem.Memory against a real Windows
// process handle: WriteProcessMemory/ReadProcessMemory-backed writes and
// reads of another process's address space.
package remoteio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Memory reads and writes a remote process's address space through a
// process handle opened with PROCESS_VM_OPERATION | PROCESS_VM_READ |
// PROCESS_VM_WRITE.
type Memory struct {
	handle windows.Handle
}

// New wraps an already-open process handle. The caller retains ownership
// of handle and must close it after the Memory (and anything built on
// top of it) is no longer in use.
func New(handle windows.Handle) *Memory {
	return &Memory{handle: handle}
}

func (m *Memory) Write(addr uintptr, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var written uintptr
	err := windows.WriteProcessMemory(m.handle, addr, &data[0], uintptr(len(data)), &written)
	if err != nil {
		return fmt.Errorf("remoteio: WriteProcessMemory(%#x, %d bytes): %w", addr, len(data), err)
	}
	if written != uintptr(len(data)) {
		return fmt.Errorf("remoteio: WriteProcessMemory(%#x) wrote %d of %d bytes", addr, written, len(data))
	}
	return nil
}

func (m *Memory) ReadInto(addr uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	var read uintptr
	err := windows.ReadProcessMemory(m.handle, addr, &buf[0], uintptr(len(buf)), &read)
	if err != nil {
		return fmt.Errorf("remoteio: ReadProcessMemory(%#x, %d bytes): %w", addr, len(buf), err)
	}
	if read != uintptr(len(buf)) {
		return fmt.Errorf("remoteio: ReadProcessMemory(%#x) read %d of %d bytes", addr, read, len(buf))
	}
	return nil
}

func (m *Memory) FlushInstructionCache(addr uintptr, length int) error {
	err := windows.FlushInstructionCache(m.handle, unsafe.Pointer(addr), uintptr(length))
	if err != nil {
		return fmt.Errorf("remoteio: FlushInstructionCache(%#x, %d): %w", addr, length, err)
	}
	return nil
}

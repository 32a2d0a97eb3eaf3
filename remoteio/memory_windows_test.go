//go:build windows
// +build windows

package remoteio

import (
	"os"
	"testing"

	"golang.org/x/sys/windows"
)

// Exercised against the test binary's own process, since opening one's
// own process for VM read/write/operation access needs no elevation. Runs
// only under a real Windows GOOS=windows CI leg.
func TestWriteReadRoundTripOnSelf(t *testing.T) {
	handle, err := windows.OpenProcess(windows.PROCESS_VM_OPERATION|windows.PROCESS_VM_READ|windows.PROCESS_VM_WRITE, false, uint32(os.Getpid()))
	if err != nil {
		t.Fatalf("OpenProcess(self): %v", err)
	}
	defer windows.CloseHandle(handle)

	mem := New(handle)

	base, err := windows.VirtualAlloc(0, 4096, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		t.Fatalf("VirtualAlloc: %v", err)
	}
	defer windows.VirtualFree(base, 0, windows.MEM_RELEASE)

	want := []byte("syringe-remoteio-roundtrip")
	if err := mem.Write(base, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, len(want))
	if err := mem.ReadInto(base, got); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}

	if err := mem.FlushInstructionCache(base, len(want)); err != nil {
		t.Fatalf("FlushInstructionCache: %v", err)
	}
}

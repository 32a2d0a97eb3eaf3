package syringe

import (
	"time"

	"github.com/xyproto/syringe/internal/procmem"
)

// Bitness is the pointer width of a process or module.
type Bitness int

const (
	Bitness32 Bitness = 32
	Bitness64 Bitness = 64
)

// ProcessRef is the contract a target process must satisfy for injection.
// winproc provides the concrete Windows implementation; tests substitute
// a fake that never touches a real OS process.
type ProcessRef interface {
	// Pid returns the target's process ID.
	Pid() uint32
	// Bitness reports whether the target is a 32-bit (WoW64) or native
	// 64-bit process.
	Bitness() Bitness
	// Memory returns the procmem.Memory used to read/write/flush the
	// target's address space.
	Memory() procmem.Memory
	// FindModule looks up a loaded module by case-insensitive base name
	// or full path. ok is false if no matching module is currently
	// loaded.
	FindModule(name string) (mod Module, ok bool)
	// Modules lists every module currently loaded in the target.
	Modules() ([]Module, error)
	// CreateRemoteThread starts a thread in the target at entry with the
	// given parameter, waits for it to exit, and returns its exit code.
	CreateRemoteThread(entry uintptr, parameter uintptr, timeout time.Duration) (exitCode uint32, err error)
	// CommitRegion reserves and commits at least size bytes of
	// read-write-execute memory in the target and returns its base
	// address. Each call backs one RawAllocator inside the Syringe's
	// multi-buffer allocator.
	CommitRegion(size uintptr) (base uintptr, err error)
}

// Module is a single loaded module (DLL or EXE) inside a target process.
type Module interface {
	// Path is the module's full on-disk path as reported by the target.
	Path() string
	// BaseAddress is the module's load address inside the target.
	BaseAddress() uintptr
	// Size is the module's mapped size in bytes.
	Size() uintptr
	// Handle is the opaque value the platform uses to identify the
	// module to FreeLibrary-equivalent calls (on Windows, the HMODULE,
	// numerically equal to BaseAddress).
	Handle() uintptr
}

// InjectedModule is the handle Inject returns: a Module bundled with the
// Syringe that injected it, so callers can eject it without holding onto
// the Syringe separately.
type InjectedModule struct {
	Module
	syringe *Syringe
}

// Eject unloads the module via its originating Syringe's FreeLibrary
// call. A convenience wrapper around (*Syringe).Eject for callers that
// already have the InjectedModule in hand.
func (m InjectedModule) Eject() error {
	return m.syringe.Eject(m)
}

// retryWithFilter calls fn, retrying only while retryable(err) is true,
// sleeping interval between attempts, until it succeeds or timeout has
// elapsed. It is used to ride out the one spurious transient failure
// remote process enumeration is prone to: a freshly spawned target's own
// modules not yet being visible to a snapshot taken immediately after
// spawn.
func retryWithFilter[T any](timeout, interval time.Duration, retryable func(error) bool, fn func() (T, error)) (T, error) {
	deadline := time.Now().Add(timeout)
	var zero T
	for {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !retryable(err) || !time.Now().Before(deadline) {
			return zero, err
		}
		time.Sleep(interval)
	}
}

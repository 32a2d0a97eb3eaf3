//go:build windows
// +build windows

package winproc

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/xyproto/syringe"
	"github.com/xyproto/syringe/internal/procmem"
	"github.com/xyproto/syringe/remoteio"
)

// processGoneError marks a winproc OS-call failure that means the
// target process itself is no longer accessible — exited, or access to
// it revoked — as distinct from a transient I/O problem. It implements
// syringe's unexported processInaccessible marker interface (the same
// idiom as net.Error's Timeout() method), which is how that distinction
// crosses the ProcessRef boundary without syringe importing this
// package's Windows-specific error codes.
type processGoneError struct {
	cause error
}

func (e *processGoneError) Error() string {
	return fmt.Sprintf("winproc: target process is no longer accessible: %v", e.cause)
}
func (e *processGoneError) Unwrap() error             { return e.cause }
func (e *processGoneError) ProcessInaccessible() bool { return true }

// looksLikeProcessGone reports whether err is one of the Win32 codes
// CreateRemoteThread/WaitForSingleObject return once the handle they
// were given refers to a process that has since exited or whose
// security descriptor no longer grants this access.
func looksLikeProcessGone(err error) bool {
	return errors.Is(err, windows.ERROR_INVALID_HANDLE) || errors.Is(err, windows.ERROR_ACCESS_DENIED)
}

const openAccess = windows.PROCESS_VM_OPERATION | windows.PROCESS_VM_READ | windows.PROCESS_VM_WRITE |
	windows.PROCESS_CREATE_THREAD | windows.PROCESS_QUERY_INFORMATION | windows.SYNCHRONIZE

// Process is the winproc implementation of syringe.ProcessRef.
type Process struct {
	pid     uint32
	handle  windows.Handle
	mem     *remoteio.Memory
	bitness syringe.Bitness
}

// Open attaches to an already-running process by PID, opening the
// minimal access mask Inject/Eject/GetProcedureAddress need.
func Open(pid uint32) (*Process, error) {
	handle, err := windows.OpenProcess(openAccess, false, pid)
	if err != nil {
		return nil, fmt.Errorf("winproc: OpenProcess(%d): %w", pid, err)
	}

	bitness, err := detectBitness(handle)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, err
	}

	return &Process{pid: pid, handle: handle, mem: remoteio.New(handle), bitness: bitness}, nil
}

// Close releases the underlying process handle. Safe to call once the
// Syringe built on this Process is no longer in use.
func (p *Process) Close() error {
	return windows.CloseHandle(p.handle)
}

func detectBitness(handle windows.Handle) (syringe.Bitness, error) {
	hostIs64 := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	if !hostIs64 {
		return syringe.Bitness32, nil
	}
	var isWow64 bool
	if err := windows.IsWow64Process(handle, &isWow64); err != nil {
		return 0, fmt.Errorf("winproc: IsWow64Process: %w", err)
	}
	if isWow64 {
		return syringe.Bitness32, nil
	}
	return syringe.Bitness64, nil
}

func (p *Process) Pid() uint32              { return p.pid }
func (p *Process) Bitness() syringe.Bitness { return p.bitness }
func (p *Process) Memory() procmem.Memory   { return p.mem }

// FindModule looks a loaded module up by case-insensitive base name or
// full path, taking a fresh Toolhelp32 snapshot each call: module lists
// change as a target loads/unloads DLLs, so there is no long-lived cache
// to invalidate.
func (p *Process) FindModule(name string) (syringe.Module, bool) {
	mods, err := p.Modules()
	if err != nil {
		return nil, false
	}
	needle := strings.ToLower(name)
	for _, m := range mods {
		if strings.ToLower(m.Path()) == needle {
			return m, true
		}
		if base := lastPathComponent(m.Path()); strings.ToLower(base) == needle {
			return m, true
		}
	}
	return nil, false
}

func lastPathComponent(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Modules enumerates every module currently loaded in the target via
// TH32CS_SNAPMODULE (TH32CS_SNAPMODULE32 is included too so a 64-bit host
// enumerating a WoW64 target still sees its 32-bit modules).
func (p *Process) Modules() ([]syringe.Module, error) {
	flags := uint32(windows.TH32CS_SNAPMODULE | windows.TH32CS_SNAPMODULE32)
	snap, err := windows.CreateToolhelp32Snapshot(flags, p.pid)
	if err != nil {
		return nil, fmt.Errorf("winproc: CreateToolhelp32Snapshot(modules, %d): %w", p.pid, err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var out []syringe.Module
	err = windows.Module32First(snap, &entry)
	for err == nil {
		out = append(out, &module{
			path:   windows.UTF16ToString(entry.ExePath[:]),
			base:   uintptr(unsafe.Pointer(entry.ModBaseAddr)),
			size:   uintptr(entry.ModBaseSize),
			handle: uintptr(entry.ModuleHandle),
		})
		err = windows.Module32Next(snap, &entry)
	}
	if err != nil && err != windows.ERROR_NO_MORE_FILES {
		return nil, fmt.Errorf("winproc: Module32Next(%d): %w", p.pid, err)
	}
	return out, nil
}

// CreateRemoteThread starts a thread in the target at entry with the
// given parameter, waits (logging one warning if it takes longer than
// warnAfter, never actually timing out — see syringe's no-cancellation
// rule), and returns its exit code.
func (p *Process) CreateRemoteThread(entry, parameter uintptr, warnAfter time.Duration) (uint32, error) {
	thread, err := createRemoteThread(p.handle, entry, parameter)
	if err != nil {
		if looksLikeProcessGone(err) {
			return 0, &processGoneError{cause: fmt.Errorf("CreateRemoteThread(%#x): %w", entry, err)}
		}
		return 0, fmt.Errorf("winproc: CreateRemoteThread(%#x): %w", entry, err)
	}
	defer windows.CloseHandle(thread)

	if warnAfter > 0 {
		timer := time.AfterFunc(warnAfter, func() {
			fmt.Fprintf(os.Stderr, "winproc: remote thread at %#x has not returned after %s\n", entry, warnAfter)
		})
		defer timer.Stop()
	}

	if _, err := windows.WaitForSingleObject(thread, windows.INFINITE); err != nil {
		if looksLikeProcessGone(err) {
			return 0, &processGoneError{cause: fmt.Errorf("WaitForSingleObject(remote thread at %#x): %w", entry, err)}
		}
		return 0, fmt.Errorf("winproc: WaitForSingleObject(remote thread at %#x): %w", entry, err)
	}

	code, err := getExitCodeThread(thread)
	if err != nil {
		return 0, fmt.Errorf("winproc: GetExitCodeThread(remote thread at %#x): %w", entry, err)
	}
	return code, nil
}

// CommitRegion reserves and commits at least size bytes of
// read-write-execute memory in the target via VirtualAllocEx.
func (p *Process) CommitRegion(size uintptr) (uintptr, error) {
	base, err := windows.VirtualAllocEx(p.handle, 0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("winproc: VirtualAllocEx(%d bytes): %w", size, err)
	}
	return base, nil
}

package syringe

import (
	"errors"
	"path/filepath"
	"runtime"
	"time"
	"unicode/utf16"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/syringe/internal/procmem"
	"github.com/xyproto/syringe/internal/winpe"
)

// Syringe drives code injection and remote execution against one target
// process. It is not safe for concurrent mutating calls (Inject, Eject,
// GetProcedureAddress, RemoteProcedure.Call) from multiple goroutines.
type Syringe struct {
	process ProcessRef
	alloc   *procmem.MultiBufferAllocator

	injectHelp [2]onceValue[injectHelpData] // indexed by bitnessIndex

	getProcAddrStub *getProcAddressStub
	defaultWaitWarn time.Duration

	// lookupKernel32Exports resolves kernel32.dll's export table for a
	// given target bitness. It defaults to parsing the real on-disk
	// System32/SysWOW64 image; tests substitute a fake so the engine's
	// logic is exercised without a Windows filesystem.
	lookupKernel32Exports func(Bitness) (map[string]uint32, error)
}

// defaultPageSize is the page granularity new raw allocators are grown
// by; matches the common Windows VirtualAlloc page size.
const defaultPageSize = 4096

// New constructs a Syringe targeting process. The allocator used to carve
// memory out of the target grows lazily: each time the multi-buffer
// allocator needs a new raw region it calls process.CommitRegion, so
// every region this Syringe ever hands out lives inside this one target.
func New(process ProcessRef) *Syringe {
	factory := func(size uintptr) (*procmem.RawAllocator, error) {
		pageSize := roundUpPage(size)
		base, err := process.CommitRegion(pageSize)
		if err != nil {
			return nil, newError(RemoteIo, err, "commit %d bytes in target", pageSize)
		}
		return procmem.NewRawAllocator(base, pageSize), nil
	}

	return &Syringe{
		process:               process,
		alloc:                 procmem.NewMultiBufferAllocator(factory, defaultPageSize),
		defaultWaitWarn:       env.Duration("SYRINGE_WAIT_WARN", 30*time.Second),
		lookupKernel32Exports: kernel32Exports,
	}
}

// errKernel32NotYetVisible marks the one sanctioned retry in this
// package: a freshly spawned target can take a moment before its own
// kernel32.dll shows up in module enumeration.
var errKernel32NotYetVisible = errors.New("syringe: kernel32.dll not yet visible in target module list")

func isKernel32NotYetVisible(err error) bool {
	return errors.Is(err, errKernel32NotYetVisible)
}

// kernel32DiscoveryTimeout and kernel32DiscoveryInterval bound the
// kernel32.dll module-enumeration retry in buildInjectHelpData.
const (
	kernel32DiscoveryTimeout  = time.Second
	kernel32DiscoveryInterval = 10 * time.Millisecond
)

func roundUpPage(size uintptr) uintptr {
	if size == 0 {
		return defaultPageSize
	}
	return (size + defaultPageSize - 1) / defaultPageSize * defaultPageSize
}

func bitnessIndex(b Bitness) int {
	if b == Bitness32 {
		return 0
	}
	return 1
}

// Inject loads payloadPath into the target process and returns a handle
// to the newly loaded module.
func (s *Syringe) Inject(payloadPath string) (InjectedModule, error) {
	abs, err := filepath.Abs(payloadPath)
	if err != nil {
		return InjectedModule{}, newError(PathEncoding, err, "resolve absolute path for %s", payloadPath)
	}

	help, err := s.resolveInjectHelp()
	if err != nil {
		return InjectedModule{}, err
	}

	pathBox, err := writeUTF16String(s.alloc, s.process.Memory(), abs)
	if err != nil {
		return InjectedModule{}, newError(RemoteIo, err, "write payload path into target")
	}
	defer pathBox.Close()

	logf("injecting %s via LoadLibraryW at %#x", abs, help.loadLibraryW)

	exitCode, err := s.runRemoteThread(help.loadLibraryW, pathBox.AsRawPtr())
	if err != nil {
		return InjectedModule{}, err
	}
	if exitCode == 0 {
		return InjectedModule{}, newError(RemoteOperationFailed, nil, "LoadLibraryW(%s) returned NULL", abs)
	}

	mod, ok := s.process.FindModule(abs)
	if !ok {
		return InjectedModule{}, newError(RemoteOperationFailed, nil, "module %s not found in target after LoadLibraryW reported success", abs)
	}
	if uint32(mod.Handle()) != exitCode {
		return InjectedModule{}, newError(RemoteOperationFailed, nil,
			"module handle %#x for %s does not match LoadLibraryW exit code %#x", mod.Handle(), abs, exitCode)
	}

	return InjectedModule{Module: mod, syringe: s}, nil
}

// Eject unloads an injected module via FreeLibrary.
func (s *Syringe) Eject(m InjectedModule) error {
	help, err := s.resolveInjectHelp()
	if err != nil {
		return err
	}

	logf("ejecting %s via FreeLibrary at %#x", m.Path(), help.freeLibrary)

	exitCode, err := s.runRemoteThread(help.freeLibrary, m.Handle())
	if err != nil {
		return err
	}
	if exitCode == 0 {
		return newError(RemoteOperationFailed, nil, "FreeLibrary(%s) returned FALSE", m.Path())
	}
	return nil
}

// GetProcedureAddress resolves an exported symbol inside module to a
// target-space function pointer, using the cached get_proc_address
// trampoline (built on first use).
func (s *Syringe) GetProcedureAddress(module Module, name string) (uintptr, error) {
	stub, err := s.procAddressStub()
	if err != nil {
		return 0, err
	}
	return stub.resolve(s, module.Handle(), name)
}

// resolveInjectHelp returns (building and caching, if necessary) the
// LoadLibraryW/FreeLibrary addresses for the target's bitness.
func (s *Syringe) resolveInjectHelp() (injectHelpData, error) {
	bitness := s.process.Bitness()
	return s.injectHelp[bitnessIndex(bitness)].get(func() (injectHelpData, error) {
		return buildInjectHelpData(s.process, bitness, s.lookupKernel32Exports)
	})
}

// kernel32ImagePath picks the on-disk kernel32.dll whose bitness matches
// targetBitness: System32\kernel32.dll when the target shares the host's
// bitness, SysWOW64\kernel32.dll when the host is 64-bit and the target
// is a WoW64 (32-bit) process. A 32-bit host can never drive a 64-bit
// target, since it cannot even load that target's modules into its own
// address space to resolve addresses against.
func kernel32ImagePath(targetBitness Bitness) (string, error) {
	hostIs64 := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	systemRoot := env.Str("SYSTEMROOT", `C:\Windows`)

	switch {
	case targetBitness == Bitness64 && hostIs64:
		return filepath.Join(systemRoot, "System32", "kernel32.dll"), nil
	case targetBitness == Bitness32 && !hostIs64:
		return filepath.Join(systemRoot, "System32", "kernel32.dll"), nil
	case targetBitness == Bitness32 && hostIs64:
		return filepath.Join(systemRoot, "SysWOW64", "kernel32.dll"), nil
	default:
		return "", newError(UnsupportedTarget, nil, "cannot bridge a 32-bit host to a 64-bit target")
	}
}

// kernel32Exports opens and parses the on-disk kernel32.dll matching
// targetBitness, returning its export table as name->RVA.
func kernel32Exports(targetBitness Bitness) (map[string]uint32, error) {
	path, err := kernel32ImagePath(targetBitness)
	if err != nil {
		return nil, err
	}

	reader, err := winpe.Open(path)
	if err != nil {
		return nil, newError(PeParse, err, "open %s", path)
	}
	defer reader.Close()

	exports, err := reader.ExportMap()
	if err != nil {
		return nil, newError(PeParse, err, "parse exports of %s", path)
	}
	return exports, nil
}

// buildInjectHelpData locates LoadLibraryW and FreeLibrary in the
// target's kernel32.dll.
func buildInjectHelpData(process ProcessRef, targetBitness Bitness, lookup func(Bitness) (map[string]uint32, error)) (injectHelpData, error) {
	// A freshly spawned target can take a moment to map its own
	// kernel32.dll; poll for up to a second before giving up.
	kernel32, err := retryWithFilter(kernel32DiscoveryTimeout, kernel32DiscoveryInterval, isKernel32NotYetVisible, func() (Module, error) {
		mod, ok := process.FindModule("kernel32.dll")
		if !ok {
			return nil, errKernel32NotYetVisible
		}
		return mod, nil
	})
	if err != nil {
		return injectHelpData{}, newError(RemoteOperationFailed, err, "kernel32.dll not found in target module list")
	}

	exports, err := lookup(targetBitness)
	if err != nil {
		return injectHelpData{}, err
	}

	loadLibraryRVA, ok := exports["LoadLibraryW"]
	if !ok {
		return injectHelpData{}, newError(PeParse, nil, "kernel32.dll has no LoadLibraryW export")
	}
	freeLibraryRVA, ok := exports["FreeLibrary"]
	if !ok {
		return injectHelpData{}, newError(PeParse, nil, "kernel32.dll has no FreeLibrary export")
	}

	base := kernel32.BaseAddress()
	return injectHelpData{
		loadLibraryW: base + uintptr(loadLibraryRVA),
		freeLibrary:  base + uintptr(freeLibraryRVA),
	}, nil
}

// runRemoteThread is the shared remote-thread invocation helper: start,
// wait, fetch exit code. Handle lifetime is entirely winproc's concern;
// this layer only sees the (exitCode, err) contract.
func (s *Syringe) runRemoteThread(entry, parameter uintptr) (uint32, error) {
	exitCode, err := s.process.CreateRemoteThread(entry, parameter, s.defaultWaitWarn)
	if err != nil {
		return 0, classifyProcessError(err, "run remote thread at %#x", entry)
	}
	return exitCode, nil
}

// writeUTF16String allocates a UTF-16, null-terminated copy of s in the
// target and returns the code box backing it (reused as a generic byte
// box since the length is only known at call time).
func writeUTF16String(alloc *procmem.MultiBufferAllocator, mem procmem.Memory, s string) (*procmem.CodeBox, error) {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, (len(units)+1)*2)
	for i, u := range units {
		buf[i*2] = byte(u)
		buf[i*2+1] = byte(u >> 8)
	}
	return procmem.AllocCode(alloc, mem, buf)
}

// writeASCIIZ allocates a null-terminated ASCII copy of s in the target.
func writeASCIIZ(alloc *procmem.MultiBufferAllocator, mem procmem.Memory, s string) (*procmem.CodeBox, error) {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return procmem.AllocCode(alloc, mem, buf)
}

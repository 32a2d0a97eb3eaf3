package syringe

import (
	"sync"

	"github.com/xyproto/syringe/internal/procmem"
	"github.com/xyproto/syringe/internal/shellcode"
)

// getProcAddressParams is the packed (module_handle, name_ptr) tuple the
// get_proc_address trampoline reads as its lpParameter, both fields a
// native 8 bytes wide regardless of target bitness (spec.md §4.E-ii).
type getProcAddressParams struct {
	ModuleHandle uint64
	NamePtr      uint64
}

// getProcAddressStub is the cached trampoline plus parameter/result cells
// GetProcedureAddress reuses across calls.
type getProcAddressStub struct {
	mu     sync.Mutex
	code   *procmem.CodeBox
	params *procmem.Box[getProcAddressParams]
	result *procmem.Box[uint64]
}

// procAddressStub builds (once) and returns the Syringe's cached
// get_proc_address stub.
func (s *Syringe) procAddressStub() (*getProcAddressStub, error) {
	if s.getProcAddrStub != nil {
		return s.getProcAddrStub, nil
	}

	bitness := s.process.Bitness()
	getProcAddrAddr, err := s.resolveGetProcAddress(bitness)
	if err != nil {
		return nil, err
	}

	resultBox, err := procmem.AllocBox[uint64](s.alloc, s.process.Memory())
	if err != nil {
		return nil, newError(RemoteIo, err, "allocate get_proc_address result cell")
	}
	paramsBox, err := procmem.AllocBox[getProcAddressParams](s.alloc, s.process.Memory())
	if err != nil {
		resultBox.Close()
		return nil, newError(RemoteIo, err, "allocate get_proc_address parameter cell")
	}

	code, err := assembleGetProcAddressStub(bitness, getProcAddrAddr, resultBox.AsRawPtr())
	if err != nil {
		paramsBox.Close()
		resultBox.Close()
		return nil, err
	}
	codeBox, err := procmem.AllocCode(s.alloc, s.process.Memory(), code)
	if err != nil {
		paramsBox.Close()
		resultBox.Close()
		return nil, newError(RemoteIo, err, "write get_proc_address stub into target")
	}

	stub := &getProcAddressStub{code: codeBox, params: paramsBox, result: resultBox}
	s.getProcAddrStub = stub
	return stub, nil
}

// resolveGetProcAddress locates kernel32!GetProcAddress in the target: it
// lives in the same module and export table buildInjectHelpData already
// knows how to parse.
func (s *Syringe) resolveGetProcAddress(bitness Bitness) (uintptr, error) {
	kernel32, ok := s.process.FindModule("kernel32.dll")
	if !ok {
		return 0, newError(RemoteOperationFailed, nil, "kernel32.dll not found in target module list")
	}

	exports, err := s.lookupKernel32Exports(bitness)
	if err != nil {
		return 0, err
	}

	rva, ok := exports["GetProcAddress"]
	if !ok {
		return 0, newError(PeParse, nil, "kernel32.dll has no GetProcAddress export")
	}
	return kernel32.BaseAddress() + uintptr(rva), nil
}

func assembleGetProcAddressStub(bitness Bitness, getProcAddress, resultOut uintptr) ([]byte, error) {
	if bitness == Bitness32 {
		gpa32, err := shellcode.ToAddr32(uint64(getProcAddress))
		if err != nil {
			return nil, newError(StubAssembly, err, "get_proc_address address does not fit in 32 bits")
		}
		res32, err := shellcode.ToAddr32(uint64(resultOut))
		if err != nil {
			return nil, newError(StubAssembly, err, "get_proc_address result cell does not fit in 32 bits")
		}
		return shellcode.GetProcAddressX86(gpa32, res32), nil
	}
	return shellcode.GetProcAddressX64(uint64(getProcAddress), uint64(resultOut)), nil
}

// resolve runs the cached stub against one (moduleHandle, name) pair.
func (stub *getProcAddressStub) resolve(s *Syringe, moduleHandle uintptr, name string) (uintptr, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()

	nameBox, err := writeASCIIZ(s.alloc, s.process.Memory(), name)
	if err != nil {
		return 0, newError(RemoteIo, err, "write export name %q into target", name)
	}
	defer nameBox.Close()

	if err := stub.result.Write(0); err != nil {
		return 0, newError(RemoteIo, err, "clear get_proc_address result cell")
	}
	params := getProcAddressParams{
		ModuleHandle: uint64(moduleHandle),
		NamePtr:      uint64(nameBox.AsRawPtr()),
	}
	if err := stub.params.Write(params); err != nil {
		return 0, newError(RemoteIo, err, "write get_proc_address parameters")
	}

	if _, err := s.runRemoteThread(stub.code.AsRawPtr(), stub.params.AsRawPtr()); err != nil {
		return 0, err
	}

	result, err := stub.result.Read()
	if err != nil {
		return 0, newError(RemoteIo, err, "read get_proc_address result")
	}
	return uintptr(result), nil
}

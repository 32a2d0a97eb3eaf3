package syringe

import (
	"sync"

	"github.com/xyproto/syringe/internal/procmem"
	"github.com/xyproto/syringe/internal/shellcode"
)

// RemoteProcedure is a callable handle over an exported one-arg,
// one-result function living inside a target process. Build one with
// GetProcedure.
type RemoteProcedure[T any, R any] struct {
	syringe *Syringe
	callee  uintptr

	mu     sync.Mutex
	code   *procmem.CodeBox
	params *procmem.Box[T]
	result *procmem.Box[R]
}

// GetProcedure resolves name inside module and returns a typed callable
// bound to it. The target function must have the C signature
// void fn(const T *arg_in, R *result_out).
func GetProcedure[T any, R any](s *Syringe, module Module, name string) (*RemoteProcedure[T, R], error) {
	addr, err := s.GetProcedureAddress(module, name)
	if err != nil {
		return nil, err
	}
	if addr == 0 {
		return nil, newError(RemoteOperationFailed, nil, "GetProcAddress(%s) returned NULL", name)
	}
	return &RemoteProcedure[T, R]{syringe: s, callee: addr}, nil
}

// Call writes arg into the target, invokes the bound procedure via a
// remote thread, and returns its captured result.
func (p *RemoteProcedure[T, R]) Call(arg T) (R, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero R
	if p.code == nil {
		if err := p.buildStub(); err != nil {
			return zero, err
		}
	}

	if err := p.params.Write(arg); err != nil {
		return zero, newError(RemoteIo, err, "write remote procedure argument")
	}

	if _, err := p.syringe.runRemoteThread(p.code.AsRawPtr(), p.params.AsRawPtr()); err != nil {
		return zero, err
	}

	result, err := p.result.Read()
	if err != nil {
		return zero, newError(RemoteIo, err, "read remote procedure result")
	}
	return result, nil
}

// buildStub allocates parameter/result cells sized to T/R and assembles
// the call_procedure trampoline that bridges the remote-thread entry
// convention to fn(&arg, &result).
func (p *RemoteProcedure[T, R]) buildStub() error {
	s := p.syringe
	mem := s.process.Memory()

	resultBox, err := procmem.AllocBox[R](s.alloc, mem)
	if err != nil {
		return newError(RemoteIo, err, "allocate remote procedure result cell")
	}
	paramsBox, err := procmem.AllocBox[T](s.alloc, mem)
	if err != nil {
		resultBox.Close()
		return newError(RemoteIo, err, "allocate remote procedure parameter cell")
	}

	code, err := assembleCallProcedureStub(s.process.Bitness(), p.callee, resultBox.AsRawPtr())
	if err != nil {
		paramsBox.Close()
		resultBox.Close()
		return err
	}
	codeBox, err := procmem.AllocCode(s.alloc, mem, code)
	if err != nil {
		paramsBox.Close()
		resultBox.Close()
		return newError(RemoteIo, err, "write call_procedure stub into target")
	}

	p.code = codeBox
	p.params = paramsBox
	p.result = resultBox
	return nil
}

func assembleCallProcedureStub(bitness Bitness, callee, resultOut uintptr) ([]byte, error) {
	if bitness == Bitness32 {
		callee32, err := shellcode.ToAddr32(uint64(callee))
		if err != nil {
			return nil, newError(StubAssembly, err, "callee address does not fit in 32 bits")
		}
		res32, err := shellcode.ToAddr32(uint64(resultOut))
		if err != nil {
			return nil, newError(StubAssembly, err, "result cell does not fit in 32 bits")
		}
		return shellcode.CallProcedureX86(callee32, res32), nil
	}
	return shellcode.CallProcedureX64(uint64(callee), uint64(resultOut)), nil
}

// Close releases the stub's code and cell boxes. A RemoteProcedure that
// is never Closed relies on the same finalizer safety net as the boxes
// it owns.
func (p *RemoteProcedure[T, R]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.code == nil {
		return nil
	}
	var firstErr error
	if err := p.code.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.params.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.result.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

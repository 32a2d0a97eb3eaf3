package procmem

import (
	"runtime"
	"sync/atomic"
)

// CodeBox is a remote box over a variable-length byte slice holding
// assembled machine code. It exists separately from Box[T] because Go
// generics have no unsized-type equivalent of Rust's RemoteBox<[u8]>: the
// allocation's length is only known once the caller has assembled the
// stub, not at the type level.
type CodeBox struct {
	alloc     Allocation
	allocator *MultiBufferAllocator
	mem       Memory
	closed    atomic.Bool
}

// AllocCode allocates len(code) bytes, writes code into them, and flushes
// the instruction cache for that range before returning. The box is only
// safe to execute from after this call returns successfully.
func AllocCode(allocator *MultiBufferAllocator, mem Memory, code []byte) (*CodeBox, error) {
	alloc, err := allocator.Alloc(uintptr(len(code)))
	if err != nil {
		return nil, err
	}

	if err := mem.Write(alloc.Base, code); err != nil {
		_ = allocator.Free(alloc)
		return nil, err
	}
	if err := mem.FlushInstructionCache(alloc.Base, len(code)); err != nil {
		_ = allocator.Free(alloc)
		return nil, err
	}

	b := &CodeBox{alloc: alloc, allocator: allocator, mem: mem}
	runtime.SetFinalizer(b, (*CodeBox).finalize)
	return b, nil
}

// AsRawPtr exposes the target-space address of the assembled code.
func (b *CodeBox) AsRawPtr() uintptr { return b.alloc.Base }

// Len returns the code length in bytes.
func (b *CodeBox) Len() uintptr { return b.alloc.Length }

// Close returns the allocation to its allocator. Calling Close more than
// once is a no-op.
func (b *CodeBox) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(b, nil)
	return b.allocator.Free(b.alloc)
}

func (b *CodeBox) finalize() {
	if b.closed.Load() {
		return
	}
	logf("code box leaked without Close(), freeing from finalizer")
	_ = b.Close()
}

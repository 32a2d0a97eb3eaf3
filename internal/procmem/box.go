package procmem

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// Box is a typed, owned handle to one allocation in a target process. It
// is freed exactly once, either explicitly via Close or, if a caller
// forgets, by a finalizer safety net.
//
// Box only supports T that are fixed-size, trivially-copyable value types
// (structs of scalars, no pointers or slices) — the same restriction the
// spec's "remote box" places on its typed read/write helpers. Variable
// length payloads (assembled machine code) use CodeBox instead.
type Box[T any] struct {
	alloc     Allocation
	allocator *MultiBufferAllocator
	mem       Memory
	closed    atomic.Bool
}

// AllocBox creates a Box sized to exactly sizeof(T) in the given
// allocator, backed by mem for reads/writes.
func AllocBox[T any](allocator *MultiBufferAllocator, mem Memory) (*Box[T], error) {
	var zero T
	size := unsafe.Sizeof(zero)

	alloc, err := allocator.Alloc(size)
	if err != nil {
		return nil, err
	}

	b := &Box[T]{alloc: alloc, allocator: allocator, mem: mem}
	runtime.SetFinalizer(b, (*Box[T]).finalize)
	return b, nil
}

// Write serialises value's byte image to offset 0 of the allocation.
func (b *Box[T]) Write(value T) error {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&value)), unsafe.Sizeof(value))
	return b.mem.Write(b.alloc.Base, buf)
}

// Read reads the allocation back into a value of type T.
func (b *Box[T]) Read() (T, error) {
	var value T
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&value)), unsafe.Sizeof(value))
	err := b.mem.ReadInto(b.alloc.Base, buf)
	return value, err
}

// AsRawPtr exposes the target-space address of this allocation.
func (b *Box[T]) AsRawPtr() uintptr { return b.alloc.Base }

// Len returns the allocation's length in bytes.
func (b *Box[T]) Len() uintptr { return b.alloc.Length }

// Close returns the allocation to its allocator. Calling Close more than
// once is a no-op.
func (b *Box[T]) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(b, nil)
	return b.allocator.Free(b.alloc)
}

func (b *Box[T]) finalize() {
	if b.closed.Load() {
		return
	}
	logf("box leaked without Close(), freeing from finalizer")
	_ = b.Close()
}

package procmem

import (
	"errors"
	"sort"
)

// ErrOutOfCapacity is returned when a RawAllocator has no free extent large
// enough to satisfy a request. It is a capacity signal, not an OS error.
var ErrOutOfCapacity = errors.New("procmem: raw allocator has no extent large enough for this request")

// extent is a free (offset, length) range within a RawAllocator's region.
type extent struct {
	offset uintptr
	length uintptr
}

// Allocation is a live slice of one RawAllocator's region. The zero value
// is not valid; Allocations are only produced by (*RawAllocator).Alloc,
// normally reached through (*MultiBufferAllocator).Alloc.
type Allocation struct {
	Base   uintptr
	Length uintptr
	owner  *RawAllocator
}

// RawAllocator owns exactly one already-reserved, already-committed region
// in a target process and bump-allocates sub-slices of it with a
// first-fit, coalescing free list.
//
// Reservation of the underlying region (VirtualAllocEx with RWX
// protection, in the Windows-only callers of this package) happens before
// a RawAllocator is constructed; RawAllocator only manages the arithmetic
// of sub-allocating within it.
type RawAllocator struct {
	base uintptr
	size uintptr
	free []extent
}

// NewRawAllocator wraps an already-reserved region [base, base+size) with
// a free list that initially covers the whole region.
func NewRawAllocator(base, size uintptr) *RawAllocator {
	return &RawAllocator{
		base: base,
		size: size,
		free: []extent{{offset: 0, length: size}},
	}
}

// Base returns the region's start address in the target.
func (r *RawAllocator) Base() uintptr { return r.base }

// Size returns the total size of the region.
func (r *RawAllocator) Size() uintptr { return r.size }

// Alloc scans the free list left to right and returns the first extent
// that fits, splitting it if it is larger than requested.
func (r *RawAllocator) Alloc(size uintptr) (Allocation, error) {
	if size == 0 {
		return Allocation{}, errors.New("procmem: cannot allocate zero-length extent")
	}

	for i, e := range r.free {
		if e.length < size {
			continue
		}

		base := r.base + e.offset
		remaining := e.length - size
		if remaining == 0 {
			r.free = append(r.free[:i], r.free[i+1:]...)
		} else {
			r.free[i] = extent{offset: e.offset + size, length: remaining}
		}

		return Allocation{Base: base, Length: size, owner: r}, nil
	}

	return Allocation{}, ErrOutOfCapacity
}

// Free returns a previously allocated extent to the free list, preserving
// sort order by offset and coalescing with either adjacent neighbour.
// Freeing the same Allocation twice is undefined behaviour, same as the
// underlying allocation model it mirrors.
func (r *RawAllocator) Free(a Allocation) {
	e := extent{offset: a.Base - r.base, length: a.Length}

	idx := sort.Search(len(r.free), func(i int) bool { return r.free[i].offset >= e.offset })

	r.free = append(r.free, extent{})
	copy(r.free[idx+1:], r.free[idx:])
	r.free[idx] = e

	r.coalesce(idx)
}

// coalesce merges the extent at idx with its left and right neighbours if
// they are adjacent. Called after an insertion at idx.
func (r *RawAllocator) coalesce(idx int) {
	if idx+1 < len(r.free) {
		cur := r.free[idx]
		next := r.free[idx+1]
		if cur.offset+cur.length == next.offset {
			r.free[idx] = extent{offset: cur.offset, length: cur.length + next.length}
			r.free = append(r.free[:idx+1], r.free[idx+2:]...)
		}
	}
	if idx > 0 {
		prev := r.free[idx-1]
		cur := r.free[idx]
		if prev.offset+prev.length == cur.offset {
			r.free[idx-1] = extent{offset: prev.offset, length: prev.length + cur.length}
			r.free = append(r.free[:idx], r.free[idx+1:]...)
		}
	}
}

// Capacity returns the sum of all free extents.
func (r *RawAllocator) Capacity() uintptr {
	var sum uintptr
	for _, e := range r.free {
		sum += e.length
	}
	return sum
}

// Contains reports whether ptr lies inside this allocator's region.
func (r *RawAllocator) Contains(ptr uintptr) bool {
	return ptr >= r.base && ptr < r.base+r.size
}

// liveTotal returns size - capacity; an audit helper used by tests to
// check the invariant free+live == region size.
func (r *RawAllocator) liveTotal() uintptr {
	return r.size - r.Capacity()
}

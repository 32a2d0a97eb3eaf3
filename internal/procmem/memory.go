// Package procmem implements the allocator and typed-box machinery that
// hands out and reclaims slices of a foreign process's address space.
//
// Nothing in this package touches an operating-system API directly: it is
// written against the Memory interface below, so the free-list and
// remote-box invariants can be exercised with an in-memory fake on any
// GOOS. The real Windows-backed implementation of Memory lives in the
// remoteio package.
package procmem

// Memory addresses a byte range of a single target process by absolute
// address. It holds no state beyond whatever handle its implementation
// needs to reach that process.
type Memory interface {
	// Write copies data into the target starting at addr.
	Write(addr uintptr, data []byte) error

	// ReadInto reads len(buf) bytes from the target starting at addr.
	ReadInto(addr uintptr, buf []byte) error

	// FlushInstructionCache must be called after writing executable bytes
	// and before any thread in the target executes from that range.
	FlushInstructionCache(addr uintptr, length int) error
}

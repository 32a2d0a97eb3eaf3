package procmem

import "errors"

// errOwnerlessAllocation indicates a caller tried to free a zero-value
// Allocation that was never produced by a MultiBufferAllocator.
var errOwnerlessAllocation = errors.New("procmem: allocation has no owning raw allocator")

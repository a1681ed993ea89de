// memory/types.go
package memory

import "unsafe"

// WordSize is the native machine word size in bytes.
const WordSize = int(unsafe.Sizeof(uintptr(0)))

// MemoryRegion is one contiguous span of testable RAM. Raw is the
// exclusively-owned granted block; Aligned is the usable view starting
// at the next page boundary.
type MemoryRegion struct {
	Raw      []byte
	Aligned  []byte
	Locked   bool
	PageSize uintptr
	mapped   bool
}

// BufferPair is two non-overlapping word views into one MemoryRegion,
// used as paired buffers for differential comparison. A occupies the
// first half of the aligned span, B the second.
type BufferPair struct {
	A     []uintptr
	B     []uintptr
	Count int
}

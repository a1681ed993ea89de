// patterns/types.go
package patterns

import "unsafe"

// Native word geometry.
const (
	WordSize = int(unsafe.Sizeof(uintptr(0)))
	WordBits = WordSize * 8
)

const (
	one     = uintptr(1)
	oneBits = ^uintptr(0)

	checkerboard1 = oneBits / 3      // 0x5555...
	checkerboard2 = oneBits / 3 << 1 // 0xAAAA...
)

// Outcome is the result of one test. Errors counts every mismatching
// word seen; the first mismatch is kept for diagnostics.
type Outcome struct {
	Errors      int
	FirstOffset uintptr // byte offset of the first mismatch
	Expected    uintptr
	Actual      uintptr
}

// Passed reports whether the test saw no mismatches.
func (o Outcome) Passed() bool {
	return o.Errors == 0
}

// Test is one entry of the pattern battery. Each entry writes a
// bit-pattern strategy into both buffers and verifies the readback.
// An entry's position in Battery() is stable and doubles as its bit
// index in the selection mask.
type Test interface {
	Name() string
	Run(bufA, bufB []uintptr) Outcome
}

package patterns

import (
	"sync/atomic"
	"unsafe"
)

// StuckAddress verifies that every cell responds to its own address:
// each word is written a value derived from the word's address, and
// the whole span is reread afterwards. A mismatch means a write landed
// on the wrong cell, the signature of a stuck or shorted address line.
// Sixteen sweeps alternate the parity so every cell sees both the
// address value and its complement. Unlike the battery, this test
// spans the entire region, not a compare pair.
func StuckAddress(buf []uintptr) Outcome {
	for j := 0; j < 16; j++ {
		writeAddressPattern(buf, j)
		if out := verifyAddressPattern(buf, j); !out.Passed() {
			return out
		}
	}
	return Outcome{}
}

func writeAddressPattern(buf []uintptr, j int) {
	for i := range buf {
		v := uintptr(unsafe.Pointer(&buf[i]))
		if (i+j)%2 != 0 {
			v = ^v
		}
		buf[i] = v
	}
}

func verifyAddressPattern(buf []uintptr, j int) Outcome {
	var out Outcome
	for i := range buf {
		want := uintptr(unsafe.Pointer(&buf[i]))
		if (i+j)%2 != 0 {
			want = ^want
		}
		got := atomic.LoadUintptr(&buf[i])
		if got == want {
			continue
		}
		if out.Errors == 0 {
			out.FirstOffset = uintptr(i) * uintptr(WordSize)
			out.Expected = want
			out.Actual = got
		}
		out.Errors++
	}
	return out
}

package patterns

import (
	"math/rand"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/ticpu/memtester/utils"
)

// Battery returns the fixed battery in its stable execution order.
func Battery() []Test {
	return []Test{
		randomValue{},
		compareOp{name: "Compare XOR", apply: func(v, q uintptr) uintptr { return v ^ q }},
		compareOp{name: "Compare SUB", apply: func(v, q uintptr) uintptr { return v - q }},
		compareOp{name: "Compare MUL", apply: func(v, q uintptr) uintptr { return v * q }},
		compareOp{name: "Compare DIV", apply: func(v, q uintptr) uintptr {
			if q == 0 {
				q++
			}
			return v / q
		}},
		compareOp{name: "Compare OR", apply: func(v, q uintptr) uintptr { return v | q }},
		compareOp{name: "Compare AND", apply: func(v, q uintptr) uintptr { return v & q }},
		seqInc{},
		solidBits{},
		blockSeq{},
		checkerboard{},
		bitSpread{},
		bitFlip{},
		walkingBits{name: "Walking Ones", set: true},
		walkingBits{name: "Walking Zeroes", set: false},
		narrowWrites{name: "8-bit Writes", width: 1},
		narrowWrites{name: "16-bit Writes", width: 2},
	}
}

// compareRegions verifies that both buffers read back equal. It scans
// to the end rather than stopping at the first mismatch; completeness
// of the defect picture matters more than speed. Reads go through
// atomic loads so verification observes the backing storage.
func compareRegions(bufA, bufB []uintptr) Outcome {
	var out Outcome
	for i := range bufA {
		a := atomic.LoadUintptr(&bufA[i])
		b := atomic.LoadUintptr(&bufB[i])
		if a == b {
			continue
		}
		if out.Errors == 0 {
			out.FirstOffset = uintptr(i) * uintptr(WordSize)
			out.Expected = a
			out.Actual = b
		}
		out.Errors++
	}
	return out
}

func randWord(r *rand.Rand) uintptr {
	return uintptr(r.Uint64())
}

// randomValue writes a fresh random word into the same position of
// both buffers and verifies equality.
type randomValue struct{}

func (randomValue) Name() string { return "Random Value" }

func (randomValue) Run(bufA, bufB []uintptr) Outcome {
	r := utils.NewRand(time.Now().UnixNano())
	for i := range bufA {
		v := randWord(r)
		bufA[i] = v
		bufB[i] = v
	}
	return compareRegions(bufA, bufB)
}

// compareOp applies the same operator and operand to the existing
// content of both buffers. Any divergence afterwards is data-dependent
// corruption.
type compareOp struct {
	name  string
	apply func(v, q uintptr) uintptr
}

func (t compareOp) Name() string { return t.name }

func (t compareOp) Run(bufA, bufB []uintptr) Outcome {
	q := randWord(utils.NewRand(time.Now().UnixNano()))
	for i := range bufA {
		bufA[i] = t.apply(bufA[i], q)
		bufB[i] = t.apply(bufB[i], q)
	}
	return compareRegions(bufA, bufB)
}

// seqInc writes position-derived values offset by a random base.
type seqInc struct{}

func (seqInc) Name() string { return "Sequential Increment" }

func (seqInc) Run(bufA, bufB []uintptr) Outcome {
	q := randWord(utils.NewRand(time.Now().UnixNano()))
	for i := range bufA {
		v := q + uintptr(i)
		bufA[i] = v
		bufB[i] = v
	}
	return compareRegions(bufA, bufB)
}

// solidBits alternates all-ones and all-zeros words across 64 passes.
type solidBits struct{}

func (solidBits) Name() string { return "Solid Bits" }

func (solidBits) Run(bufA, bufB []uintptr) Outcome {
	for j := 0; j < 64; j++ {
		q := oneBits
		if j%2 != 0 {
			q = 0
		}
		fillAlternating(bufA, bufB, q)
		if out := compareRegions(bufA, bufB); !out.Passed() {
			return out
		}
	}
	return Outcome{}
}

// blockSeq writes each of the 256 byte values, replicated across the
// word, one full pass per value.
type blockSeq struct{}

func (blockSeq) Name() string { return "Block Sequential" }

func (blockSeq) Run(bufA, bufB []uintptr) Outcome {
	for j := 0; j < 256; j++ {
		v := replicateByte(byte(j))
		for i := range bufA {
			bufA[i] = v
			bufB[i] = v
		}
		if out := compareRegions(bufA, bufB); !out.Passed() {
			return out
		}
	}
	return Outcome{}
}

// checkerboard alternates 0x55/0xAA bit patterns across 64 passes.
type checkerboard struct{}

func (checkerboard) Name() string { return "Checkerboard" }

func (checkerboard) Run(bufA, bufB []uintptr) Outcome {
	for j := 0; j < 64; j++ {
		q := checkerboard1
		if j%2 != 0 {
			q = checkerboard2
		}
		fillAlternating(bufA, bufB, q)
		if out := compareRegions(bufA, bufB); !out.Passed() {
			return out
		}
	}
	return Outcome{}
}

// bitSpread sets a pair of nearby bits, sweeping the pair up through
// every bit position and back down again.
type bitSpread struct{}

func (bitSpread) Name() string { return "Bit Spread" }

func (bitSpread) Run(bufA, bufB []uintptr) Outcome {
	for j := 0; j < WordBits*2; j++ {
		var q uintptr
		if j < WordBits {
			q = one<<uint(j) | one<<uint(j+2)
		} else {
			q = one<<uint(WordBits*2-1-j) | one<<uint(WordBits*2+1-j)
		}
		fillAlternating(bufA, bufB, q)
		if out := compareRegions(bufA, bufB); !out.Passed() {
			return out
		}
	}
	return Outcome{}
}

// bitFlip seeds a single-bit pattern and inverts it across eight
// passes per bit position.
type bitFlip struct{}

func (bitFlip) Name() string { return "Bit Flip" }

func (bitFlip) Run(bufA, bufB []uintptr) Outcome {
	for k := 0; k < WordBits; k++ {
		q := one << uint(k)
		for j := 0; j < 8; j++ {
			q = ^q
			fillAlternating(bufA, bufB, q)
			if out := compareRegions(bufA, bufB); !out.Passed() {
				return out
			}
		}
	}
	return Outcome{}
}

// walkingBits walks a single set (or cleared) bit across every bit
// position and back, one full pass per position.
type walkingBits struct {
	name string
	set  bool
}

func (t walkingBits) Name() string { return t.name }

func (t walkingBits) Run(bufA, bufB []uintptr) Outcome {
	for j := 0; j < WordBits*2; j++ {
		bit := j
		if j >= WordBits {
			bit = WordBits*2 - j - 1
		}
		v := one << uint(bit)
		if !t.set {
			v = oneBits ^ v
		}
		for i := range bufA {
			bufA[i] = v
			bufB[i] = v
		}
		if out := compareRegions(bufA, bufB); !out.Passed() {
			return out
		}
	}
	return Outcome{}
}

// narrowWrites checks that stores narrower than the native word do not
// corrupt their neighbors: one buffer takes whole words, the other the
// same words written one narrow lane at a time. The buffers swap roles
// on the second attempt.
type narrowWrites struct {
	name  string
	width int // bytes per store
}

func (t narrowWrites) Name() string { return t.name }

func (t narrowWrites) Run(bufA, bufB []uintptr) Outcome {
	r := utils.NewRand(time.Now().UnixNano())
	for attempt := 0; attempt < 2; attempt++ {
		narrow, wide := bufA, bufB
		if attempt%2 != 0 {
			narrow, wide = bufB, bufA
		}
		for i := range wide {
			v := randWord(r)
			wide[i] = v
			storeNarrow(&narrow[i], v, t.width)
		}
		if out := compareRegions(bufA, bufB); !out.Passed() {
			return out
		}
	}
	return Outcome{}
}

// storeNarrow writes v into *dst one width-sized lane at a time, in
// native byte order.
func storeNarrow(dst *uintptr, v uintptr, width int) {
	switch width {
	case 1:
		src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), WordSize)
		out := unsafe.Slice((*byte)(unsafe.Pointer(dst)), WordSize)
		for i := range out {
			out[i] = src[i]
		}
	case 2:
		src := unsafe.Slice((*uint16)(unsafe.Pointer(&v)), WordSize/2)
		out := unsafe.Slice((*uint16)(unsafe.Pointer(dst)), WordSize/2)
		for i := range out {
			out[i] = src[i]
		}
	}
}

// fillAlternating writes q to even positions and ^q to odd positions
// of both buffers.
func fillAlternating(bufA, bufB []uintptr, q uintptr) {
	for i := range bufA {
		v := q
		if i%2 != 0 {
			v = ^q
		}
		bufA[i] = v
		bufB[i] = v
	}
}

// replicateByte spreads b into every byte lane of a word.
func replicateByte(b byte) uintptr {
	return oneBits / 0xff * uintptr(b)
}

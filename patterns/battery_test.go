package patterns

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cleanPair(count int) ([]uintptr, []uintptr) {
	return make([]uintptr, count), make([]uintptr, count)
}

func TestBatteryOrderIsStable(t *testing.T) {
	names := []string{
		"Random Value",
		"Compare XOR",
		"Compare SUB",
		"Compare MUL",
		"Compare DIV",
		"Compare OR",
		"Compare AND",
		"Sequential Increment",
		"Solid Bits",
		"Block Sequential",
		"Checkerboard",
		"Bit Spread",
		"Bit Flip",
		"Walking Ones",
		"Walking Zeroes",
		"8-bit Writes",
		"16-bit Writes",
	}
	battery := Battery()
	require.Len(t, battery, len(names))
	for i, test := range battery {
		require.Equal(t, names[i], test.Name(), "battery entry %d", i)
	}
}

func TestBatteryPassesOnCleanBuffers(t *testing.T) {
	for _, test := range Battery() {
		t.Run(test.Name(), func(t *testing.T) {
			bufA, bufB := cleanPair(512)
			out := test.Run(bufA, bufB)
			require.True(t, out.Passed(), "false positive on defect-free buffers: %+v", out)
		})
	}
}

func TestBatteryIdempotentWithInterTestClear(t *testing.T) {
	bufA, bufB := cleanPair(256)
	for pass := 0; pass < 2; pass++ {
		for _, test := range Battery() {
			out := test.Run(bufA, bufB)
			require.True(t, out.Passed(), "pass %d, %s: %+v", pass, test.Name(), out)
			for i := range bufA {
				bufA[i] = ^uintptr(0)
				bufB[i] = ^uintptr(0)
			}
		}
	}
}

func TestCompareRegionsReportsExactOffset(t *testing.T) {
	bufA, bufB := cleanPair(128)
	for i := range bufA {
		bufA[i] = 0x1234
		bufB[i] = 0x1234
	}
	bufB[37] ^= 1 << 5

	out := compareRegions(bufA, bufB)
	require.Equal(t, 1, out.Errors)
	require.Equal(t, uintptr(37*WordSize), out.FirstOffset)
	require.Equal(t, bufA[37], out.Expected)
	require.Equal(t, bufB[37], out.Actual)
}

func TestCompareRegionsScansPastFirstMismatch(t *testing.T) {
	bufA, bufB := cleanPair(64)
	bufB[3] = 1
	bufB[10] = 2
	bufB[63] = 3

	out := compareRegions(bufA, bufB)
	require.Equal(t, 3, out.Errors)
	require.Equal(t, uintptr(3*WordSize), out.FirstOffset)
}

func TestCompareOpSurfacesSingleWordCorruption(t *testing.T) {
	xor := Battery()[1]
	require.Equal(t, "Compare XOR", xor.Name())

	bufA, bufB := cleanPair(128)
	bufB[64] = 0x80 // one stuck word before the sweep

	out := xor.Run(bufA, bufB)
	require.False(t, out.Passed())
	require.Equal(t, 1, out.Errors)
	require.Equal(t, uintptr(64*WordSize), out.FirstOffset)
}

func TestStuckAddressPassesOnHealthyMemory(t *testing.T) {
	buf := make([]uintptr, 1024)
	require.True(t, StuckAddress(buf).Passed())
}

func TestStuckAddressDetectsCorruptedCell(t *testing.T) {
	buf := make([]uintptr, 256)
	writeAddressPattern(buf, 0)
	buf[99] = ^buf[99]

	out := verifyAddressPattern(buf, 0)
	require.False(t, out.Passed())
	require.Equal(t, 1, out.Errors)
	require.Equal(t, uintptr(99*WordSize), out.FirstOffset)
	require.Equal(t, ^out.Expected, out.Actual)
}

func TestReplicateByte(t *testing.T) {
	v := replicateByte(0xAB)
	for i := 0; i < WordSize; i++ {
		require.Equal(t, byte(0xAB), byte(v>>(8*i)), "byte lane %d", i)
	}
	require.Zero(t, replicateByte(0))
	require.Equal(t, ^uintptr(0), replicateByte(0xFF))
}

func TestStoreNarrowPreservesWholeWord(t *testing.T) {
	for _, width := range []int{1, 2} {
		var w uintptr
		v := uintptr(0x89ABCDEF)
		storeNarrow(&w, v, width)
		require.Equal(t, v, w, "width %d", width)
	}
}

package utils

import (
	"strings"
	"testing"
	"unsafe"
)

// ============================================================================
// ZERO-ALLOCATION TYPE CONVERSION TESTS
// ============================================================================

func TestB2s(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{name: "Empty slice", input: []byte{}, expected: ""},
		{name: "Single character", input: []byte{'a'}, expected: "a"},
		{name: "Station name", input: []byte("Hamburg"), expected: "Hamburg"},
		{name: "UTF-8 string", input: []byte("Zürich"), expected: "Zürich"},
		{name: "Large string", input: []byte(strings.Repeat("abcdefghij", 1000)), expected: strings.Repeat("abcdefghij", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := B2s(tt.input)
			if result != tt.expected {
				t.Errorf("B2s() = %q, expected %q", result, tt.expected)
			}
			if len(tt.input) > 0 {
				inputPtr := unsafe.Pointer(&tt.input[0])
				resultPtr := unsafe.Pointer(unsafe.StringData(result))
				if inputPtr != resultPtr {
					t.Error("B2s() should share underlying data with input slice")
				}
			}
		})
	}
}

func TestB2s_ZeroAllocation(t *testing.T) {
	input := []byte("test string for allocation testing")
	allocs := testing.AllocsPerRun(1000, func() {
		_ = B2s(input)
	})
	if allocs > 0 {
		t.Errorf("B2s() allocated memory: %f allocs/op", allocs)
	}
}

// ============================================================================
// POWER-OF-TWO HELPERS
// ============================================================================

func TestIsPow2(t *testing.T) {
	for _, n := range []uint64{1, 2, 4, 8, 1 << 16, 1 << 63} {
		if !IsPow2(n) {
			t.Errorf("IsPow2(%d) = false, want true", n)
		}
	}
	for _, n := range []uint64{0, 3, 6, 50000, 1<<16 + 1} {
		if IsPow2(n) {
			t.Errorf("IsPow2(%d) = true, want false", n)
		}
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 50000: 65536, 65536: 65536}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Errorf("NextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestLog2(t *testing.T) {
	cases := map[uint64]uint{1: 0, 2: 1, 3: 1, 8: 3, 1 << 20: 20}
	for in, want := range cases {
		if got := Log2(in); got != want {
			t.Errorf("Log2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ n, align, want int }{
		{0, 8, 0}, {1, 8, 8}, {8, 8, 8}, {9, 8, 16}, {100, 8, 104},
	}
	for _, c := range cases {
		if got := AlignUp(c.n, c.align); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.n, c.align, got, c.want)
		}
	}
}

// ============================================================================
// MIXER
// ============================================================================

func TestMix64_Avalanche(t *testing.T) {
	if Mix64(0) != 0 {
		t.Fatal("Mix64(0) must stay 0")
	}
	a, b := Mix64(1), Mix64(2)
	if a == b {
		t.Fatal("adjacent inputs must not collide")
	}
	diff := a ^ b
	ones := 0
	for diff != 0 {
		ones += int(diff & 1)
		diff >>= 1
	}
	if ones < 16 {
		t.Fatalf("poor avalanche: only %d bits differ", ones)
	}
}

package utils

import (
	"math/bits"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths and map probes.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

///////////////////////////////////////////////////////////////////////////////
// Power-of-Two Arithmetic — Capacity Planning & Masking
///////////////////////////////////////////////////////////////////////////////

// IsPow2 reports whether n is a positive power of two.
//
//go:nosplit
//go:inline
func IsPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// NextPow2 returns the smallest power of two ≥ n (1 for n == 0).
//
//go:nosplit
//go:inline
func NextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(n-1))
}

// Log2 returns floor(log2(n)); n must be non-zero.
//
//go:nosplit
//go:inline
func Log2(n uint64) uint {
	return uint(63 - bits.LeadingZeros64(n))
}

// AlignUp rounds n up to the next multiple of align (a power of two).
//
//go:nosplit
//go:inline
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

///////////////////////////////////////////////////////////////////////////////
// Hash & Mixers
///////////////////////////////////////////////////////////////////////////////

// Mix64 applies a Murmur3-style avalanche to a 64-bit value.
// Used to derive per-block RNG streams and to spread weak hashes.
//
//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

//go:build !linux

// reserve_other.go
//
// Portable fall-back: one word-aligned Go slice. Release just drops it.

package arena

import "unsafe"

func reserve(n int) ([]byte, func([]byte) error, error) {
	words := make([]uint64, (n+7)/8)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
	return buf, func([]byte) error { return nil }, nil
}

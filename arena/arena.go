// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ BUMP ARENA
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: Bulk-Owned Key & Record Memory
//
// Description:
//   One pre-reserved block, one cursor. Allocations are never freed individually; the whole
//   block is released by Destroy at teardown. Removes per-row allocator overhead when
//   hundreds of millions of rows fold into a few thousand records.
//
// Design Principles:
//   - Fixed capacity decided up front (see SizeFor)
//   - 8-byte aligned, zeroed allocations
//   - Overflow is process-fatal: the sizing contract was violated
//   - Block reserved via anonymous mmap on Linux, a Go slice elsewhere
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package arena

import (
	"errors"
	"fmt"
	"unsafe"

	"onebrc/constants"
	"onebrc/utils"
)

var (
	// ErrInvalidCapacity is returned by New for a non-positive capacity.
	ErrInvalidCapacity = errors.New("arena: capacity must be positive")

	// ErrExhausted is the panic value raised when an allocation does not fit.
	ErrExhausted = errors.New("arena: capacity exhausted")

	// ErrDestroyed is the panic value raised when allocating from a released arena.
	ErrDestroyed = errors.New("arena: use after destroy")
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Arena is a single-owner bump allocator. It is not safe for concurrent use.
type Arena struct {
	buf     []byte             // reserved block
	off     int                // bump cursor
	release func([]byte) error // platform release hook
}

// New reserves capacity bytes in one block.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	capacity = utils.AlignUp(capacity, constants.ArenaAlign)
	buf, release, err := reserve(capacity)
	if err != nil {
		return nil, fmt.Errorf("arena: reserve %d bytes: %w", capacity, err)
	}
	return &Arena{buf: buf, release: release}, nil
}

// SizeFor is the reference sizing rule:
// (sizeof(record) + sizeof(key buffer)) × expected distinct keys, aligned.
func SizeFor(distinctKeys, maxKeyBytes, recordBytes int) int {
	per := utils.AlignUp(recordBytes, constants.ArenaAlign) +
		utils.AlignUp(maxKeyBytes, constants.ArenaAlign)
	return per * distinctKeys
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ALLOCATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Alloc returns n zeroed bytes. It panics with ErrExhausted when the block
// cannot hold the request.
//
//go:nosplit
func (a *Arena) Alloc(n int) []byte {
	if a.buf == nil {
		panic(ErrDestroyed)
	}
	size := utils.AlignUp(n, constants.ArenaAlign)
	if size < 0 || a.off+size > len(a.buf) {
		panic(fmt.Errorf("%w: need %d, %d of %d used", ErrExhausted, size, a.off, len(a.buf)))
	}
	p := a.buf[a.off : a.off+n : a.off+n]
	a.off += size
	return p
}

// CopyBytes copies b into the arena.
func (a *Arena) CopyBytes(b []byte) []byte {
	p := a.Alloc(len(b))
	copy(p, b)
	return p
}

// Make allocates one zero T from the arena. T must not contain Go pointers:
// the garbage collector never scans arena memory.
func Make[T any](a *Arena) *T {
	var zero T
	p := a.Alloc(int(unsafe.Sizeof(zero)))
	return (*T)(unsafe.Pointer(unsafe.SliceData(p)))
}

// Fits reports whether an n-byte allocation would succeed.
func (a *Arena) Fits(n int) bool {
	return a.buf != nil && a.off+utils.AlignUp(n, constants.ArenaAlign) <= len(a.buf)
}

// Used returns the bytes handed out so far, padding included.
func (a *Arena) Used() int { return a.off }

// Cap returns the reserved size.
func (a *Arena) Cap() int { return len(a.buf) }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TEARDOWN
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Destroy releases the whole block. Every slice or record obtained from the
// arena is invalid afterwards. Calling Destroy twice is a no-op.
func (a *Arena) Destroy() error {
	if a.buf == nil {
		return nil
	}
	buf := a.buf
	a.buf, a.off = nil, 0
	return a.release(buf)
}

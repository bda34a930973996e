// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ QUADRATIC-PROBING HASH TABLE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: Fixed-Capacity Open-Addressing Map
//
// Description:
//   Flat slot array keyed by byte strings, values held by pointer so callers mutate records
//   in place. Capacity is fixed at construction; the table never grows or rehashes.
//
// Design Principles:
//   - One probe sequence shared by Insert, Upsert, Lookup and Remove
//   - Quadratic phase (home + i²) followed by a linear residual sweep: every slot reachable
//   - Tombstones on Remove keep later chain members reachable
//   - Table owns its keys: copied into an arena or onto the heap, never borrowed
//   - Single-threaded: no internal locking
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package table

import (
	"bytes"
	"errors"
	"fmt"

	"onebrc/arena"
	"onebrc/hashing"
	"onebrc/utils"
)

// ErrInvalidArgument marks construction-time misuse. The table cannot be
// built; callers are expected to abort.
var ErrInvalidArgument = errors.New("table: invalid argument")

// maxCapacity keeps i² inside 64 bits for every probe index i < capacity.
const maxCapacity = 1 << 32

// Policy selects how a 64-bit hash is reduced to a slot index.
type Policy uint8

const (
	// IndexModulo reduces with hash % capacity; any capacity.
	IndexModulo Policy = iota
	// IndexMask reduces with hash & (capacity-1); capacity must be a power of two.
	IndexMask
)

func (p Policy) String() string {
	switch p {
	case IndexModulo:
		return "mod"
	case IndexMask:
		return "mask"
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "mod", "modulo":
		return IndexModulo, nil
	case "mask", "pow2":
		return IndexMask, nil
	}
	return 0, fmt.Errorf("%w: unknown index policy %q", ErrInvalidArgument, s)
}

// Outcome reports what Upsert did.
type Outcome uint8

const (
	// Found means the key already existed; the returned value is the stored one.
	Found Outcome = iota
	// Inserted means the key was new and the created value now lives in the table.
	Inserted
	// Saturated means the key was new and no slot was left for it.
	Saturated
)

const (
	slotEmpty uint8 = iota
	slotFull
	slotTomb
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type slot[V any] struct {
	key   []byte
	val   *V
	state uint8
}

// Stats counts probe work done by Insert, Upsert and Remove.
type Stats struct {
	Probes  uint64 // slots inspected beyond the home slot
	Longest uint64 // longest walk observed, in slots
	Sweeps  uint64 // walks that fell through to the linear sweep
}

// Table is a fixed-capacity open-addressing map from byte keys to *V.
type Table[V any] struct {
	slots    []slot[V]
	strat    hashing.Strategy
	capacity uint64
	mask     uint64
	policy   Policy
	size     int
	tombs    int
	arena    *arena.Arena // key storage; nil → heap copies
	stats    Stats
}

// Option configures a Table at construction.
type Option func(*options)

type options struct {
	policy Policy
	arena  *arena.Arena
}

// WithPolicy selects the index policy (default IndexModulo).
func WithPolicy(p Policy) Option { return func(o *options) { o.policy = p } }

// WithArena makes the table copy every inserted key into a.
// The arena must outlive the table.
func WithArena(a *arena.Arena) Option { return func(o *options) { o.arena = a } }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTRUCTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// New builds an empty table with a permanently fixed capacity.
func New[V any](capacity int, s hashing.Strategy, opts ...Option) (*Table[V], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case capacity <= 0:
		return nil, fmt.Errorf("%w: capacity %d", ErrInvalidArgument, capacity)
	case uint64(capacity) > maxCapacity:
		return nil, fmt.Errorf("%w: capacity %d exceeds %d", ErrInvalidArgument, capacity, uint64(maxCapacity))
	case s == nil:
		return nil, fmt.Errorf("%w: nil key strategy", ErrInvalidArgument)
	case o.policy != IndexModulo && o.policy != IndexMask:
		return nil, fmt.Errorf("%w: policy %v", ErrInvalidArgument, o.policy)
	case o.policy == IndexMask && !utils.IsPow2(uint64(capacity)):
		return nil, fmt.Errorf("%w: mask policy needs a power-of-two capacity, got %d", ErrInvalidArgument, capacity)
	}
	return &Table[V]{
		slots:    make([]slot[V], capacity),
		strat:    s,
		capacity: uint64(capacity),
		mask:     uint64(capacity) - 1,
		policy:   o.policy,
		arena:    o.arena,
	}, nil
}

// MustNew is New for static configurations; it panics on error.
func MustNew[V any](capacity int, s hashing.Strategy, opts ...Option) *Table[V] {
	t, err := New[V](capacity, s, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PROBING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

//go:nosplit
//go:inline
func (t *Table[V]) reduce(h uint64) uint64 {
	if t.policy == IndexMask {
		return h & t.mask
	}
	return h % t.capacity
}

// walk describes the cost of one probe.
type walk struct {
	steps uint64 // slots inspected, home included
	swept bool   // fell through to the residual sweep
}

// probe walks key's sequence. It returns the slot holding key (or -1), the
// first reusable slot seen before the walk ended (or -1) and the walk cost.
// It never writes to the table, so concurrent lookups on a table nobody
// mutates are safe.
//
// The walk ends at the first empty slot, at a match, or after the residual
// sweep has covered every slot.
func (t *Table[V]) probe(key []byte) (match, free int, w walk) {
	home := t.reduce(t.strat.Hash(key))
	free = -1
	pos := home
	w.steps = 1

	// Quadratic phase: home, home+1, home+4, home+9, …
	for i := uint64(1); ; i++ {
		s := &t.slots[pos]
		switch s.state {
		case slotEmpty:
			if free < 0 {
				free = int(pos)
			}
			return -1, free, w
		case slotTomb:
			if free < 0 {
				free = int(pos)
			}
		default:
			if t.strat.Equal(s.key, key) {
				return int(pos), free, w
			}
		}
		if i >= t.capacity {
			break
		}
		pos = t.reduce(home + i*i)
		if pos == home {
			break
		}
		w.steps++
	}

	// Residual sweep: squares do not cover every residue, so finish linearly.
	w.swept = true
	for j := uint64(1); j < t.capacity; j++ {
		w.steps++
		pos = t.reduce(home + j)
		s := &t.slots[pos]
		switch s.state {
		case slotEmpty:
			if free < 0 {
				free = int(pos)
			}
			return -1, free, w
		case slotTomb:
			if free < 0 {
				free = int(pos)
			}
		default:
			if t.strat.Equal(s.key, key) {
				return int(pos), free, w
			}
		}
	}
	return -1, free, w
}

// note folds one walk into the probe counters. Only mutators call it.
func (t *Table[V]) note(w walk) {
	t.stats.Probes += w.steps - 1
	if w.steps > t.stats.Longest {
		t.stats.Longest = w.steps
	}
	if w.swept {
		t.stats.Sweeps++
	}
}

func (t *Table[V]) place(i int, key []byte, v *V) {
	s := &t.slots[i]
	if s.state == slotTomb {
		t.tombs--
	}
	if t.arena != nil {
		s.key = t.arena.CopyBytes(key)
	} else {
		s.key = bytes.Clone(key)
	}
	s.val = v
	s.state = slotFull
	t.size++
}

func mustKey(key []byte) {
	if len(key) == 0 {
		panic(fmt.Errorf("%w: empty key", ErrInvalidArgument))
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Insert adds key → v. It returns false when key is already present, when
// the table is full, or when the probe sequence offers no free slot.
func (t *Table[V]) Insert(key []byte, v *V) bool {
	mustKey(key)
	if v == nil {
		panic(fmt.Errorf("%w: nil value", ErrInvalidArgument))
	}
	if t.size >= int(t.capacity) {
		return false
	}
	match, free, w := t.probe(key)
	t.note(w)
	if match >= 0 || free < 0 {
		return false
	}
	t.place(free, key, v)
	return true
}

// Upsert returns the value stored under key, creating it with create when
// key is new. create runs only when a slot has been secured. Existing keys
// stay reachable after the table is full.
func (t *Table[V]) Upsert(key []byte, create func() *V) (*V, Outcome) {
	mustKey(key)
	if t.size >= int(t.capacity) {
		if v, ok := t.Lookup(key); ok {
			return v, Found
		}
		return nil, Saturated
	}
	match, free, w := t.probe(key)
	t.note(w)
	if match >= 0 {
		return t.slots[match].val, Found
	}
	if free < 0 {
		return nil, Saturated
	}
	v := create()
	if v == nil {
		panic(fmt.Errorf("%w: create returned nil", ErrInvalidArgument))
	}
	t.place(free, key, v)
	return v, Inserted
}

// Lookup returns the value stored under key. It does not touch the probe
// counters, so lookups on a table that is no longer mutated may run in
// parallel.
func (t *Table[V]) Lookup(key []byte) (*V, bool) {
	if len(key) == 0 || t.size == 0 {
		return nil, false
	}
	match, _, _ := t.probe(key)
	if match < 0 {
		return nil, false
	}
	return t.slots[match].val, true
}

// Remove deletes key and returns its value. The slot becomes a tombstone:
// lookups walk past it and inserts may reuse it.
func (t *Table[V]) Remove(key []byte) (*V, bool) {
	if len(key) == 0 || t.size == 0 {
		return nil, false
	}
	match, _, w := t.probe(key)
	t.note(w)
	if match < 0 {
		return nil, false
	}
	s := &t.slots[match]
	v := s.val
	s.key, s.val, s.state = nil, nil, slotTomb
	t.size--
	t.tombs++
	return v, true
}

// Compact rebuilds the slot array at the same capacity, dropping tombstones.
// Keys are not copied again.
func (t *Table[V]) Compact() {
	if t.tombs == 0 {
		return
	}
	live := make([]slot[V], 0, t.size)
	for i := range t.slots {
		if t.slots[i].state == slotFull {
			live = append(live, t.slots[i])
		}
	}
	clear(t.slots)
	t.size, t.tombs = 0, 0
	for _, e := range live {
		_, free, _ := t.probe(e.key)
		t.slots[free] = e
		t.size++
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Size returns the number of occupied slots.
func (t *Table[V]) Size() int { return t.size }

// Capacity returns the fixed slot count.
func (t *Table[V]) Capacity() int { return int(t.capacity) }

// Tombstones returns the number of removed-but-unreclaimed slots.
func (t *Table[V]) Tombstones() int { return t.tombs }

// Full reports whether no new key can be inserted.
func (t *Table[V]) Full() bool { return t.size >= int(t.capacity) }

// Policy returns the index policy.
func (t *Table[V]) Policy() Policy { return t.policy }

// Strategy returns the key strategy.
func (t *Table[V]) Strategy() hashing.Strategy { return t.strat }

// Stats returns the accumulated probe counters.
func (t *Table[V]) Stats() Stats { return t.stats }

// Range calls fn for every entry in slot order until fn returns false.
// The key slice is owned by the table and must not be modified.
func (t *Table[V]) Range(fn func(key []byte, v *V) bool) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.state != slotFull {
			continue
		}
		if !fn(s.key, s.val) {
			return
		}
	}
}

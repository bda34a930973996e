// ════════════════════════════════════════════════════════════════════════════════════════════════
// Streaming Station Aggregator
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: Per-Key Running Statistics over a Fixed-Capacity Table
//
// Description:
//   Folds (key, sample) pairs into one Record per distinct key. A key moves Unseen → Seeded on
//   its first sample and stays in Updating afterwards; records are never removed while
//   aggregating. Once the table is full, pairs for new keys are dropped with ErrSaturated
//   while existing keys keep updating.
//
// Features:
//   - Lazy record creation: arena memory is spent only on genuinely new keys
//   - Boundary guards for empty keys, oversize keys and non-finite samples
//   - Saturation latch plus a dropped-pair counter for the driver summary
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package aggregator

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"onebrc/arena"
	"onebrc/constants"
	"onebrc/debug"
	"onebrc/hashing"
	"onebrc/table"
	"onebrc/types"
)

var (
	// ErrSaturated reports a pair for a new key arriving at a full table.
	ErrSaturated = errors.New("aggregator: capacity exhausted")

	// ErrEmptyKey reports a zero-length key.
	ErrEmptyKey = errors.New("aggregator: empty key")

	// ErrKeyTooLong reports a key longer than Config.MaxKeyBytes.
	ErrKeyTooLong = errors.New("aggregator: key too long")

	// ErrBadSample reports a NaN or infinite sample.
	ErrBadSample = errors.New("aggregator: sample not finite")

	// ErrClosed reports use after Close.
	ErrClosed = errors.New("aggregator: closed")
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Config selects the table geometry and memory model.
type Config struct {
	Capacity    int              // fixed slot count
	Strategy    hashing.Strategy // hash + equality capability
	Policy      table.Policy     // modulo or mask index derivation
	Arena       bool             // carve keys and records from one bump arena
	MaxKeyBytes int              // longest accepted key; 0 selects constants.MaxKeyBytes
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:    constants.DefaultCapacity,
		Strategy:    hashing.Polynomial{},
		Policy:      table.IndexMask,
		Arena:       true,
		MaxKeyBytes: constants.MaxKeyBytes,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// AGGREGATOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Aggregator is single-owner; shard it (see package router) for parallelism.
type Aggregator struct {
	tbl       *table.Table[types.Record]
	mem       *arena.Arena
	create    func() *types.Record
	maxKey    int
	rows      uint64
	dropped   uint64
	saturated bool
	closed    bool
}

// New builds an aggregator. Construction errors wrap table.ErrInvalidArgument.
func New(cfg Config) (*Aggregator, error) {
	if cfg.MaxKeyBytes == 0 {
		cfg.MaxKeyBytes = constants.MaxKeyBytes
	}
	if cfg.MaxKeyBytes < 0 {
		return nil, fmt.Errorf("%w: max key bytes %d", table.ErrInvalidArgument, cfg.MaxKeyBytes)
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("%w: nil strategy", table.ErrInvalidArgument)
	}

	ag := &Aggregator{maxKey: cfg.MaxKeyBytes}
	var opts []table.Option
	opts = append(opts, table.WithPolicy(cfg.Policy))

	if cfg.Arena && cfg.Capacity > 0 {
		size := arena.SizeFor(cfg.Capacity, cfg.MaxKeyBytes, int(unsafe.Sizeof(types.Record{})))
		mem, err := arena.New(size)
		if err != nil {
			return nil, err
		}
		ag.mem = mem
		opts = append(opts, table.WithArena(mem))
		ag.create = func() *types.Record { return arena.Make[types.Record](mem) }
	} else {
		ag.create = func() *types.Record { return new(types.Record) }
	}

	tbl, err := table.New[types.Record](cfg.Capacity, cfg.Strategy, opts...)
	if err != nil {
		if ag.mem != nil {
			_ = ag.mem.Destroy()
		}
		return nil, err
	}
	ag.tbl = tbl
	return ag, nil
}

// Observe folds one sample into the record for key. The key is copied on
// first sight; the caller may reuse its buffer immediately.
func (ag *Aggregator) Observe(key []byte, sample float64) error {
	if ag.closed {
		return ErrClosed
	}
	switch {
	case len(key) == 0:
		return ErrEmptyKey
	case len(key) > ag.maxKey:
		return ErrKeyTooLong
	case math.IsNaN(sample) || math.IsInf(sample, 0):
		return ErrBadSample
	}

	rec, outcome := ag.tbl.Upsert(key, ag.create)
	switch outcome {
	case table.Found:
		rec.Observe(sample)
	case table.Inserted:
		rec.Seed(sample)
	default:
		ag.dropped++
		if !ag.saturated {
			ag.saturated = true
			debug.DropMessage("AGGREGATOR", fmt.Sprintf("table saturated at %d keys", ag.tbl.Size()))
		}
		return ErrSaturated
	}
	ag.rows++
	return nil
}

// Lookup returns the record for key. The pointer stays valid until Close.
func (ag *Aggregator) Lookup(key []byte) (*types.Record, bool) {
	if ag.closed {
		return nil, false
	}
	return ag.tbl.Lookup(key)
}

// Range visits every record in bucket order until fn returns false.
func (ag *Aggregator) Range(fn func(key []byte, r *types.Record) bool) {
	if ag.closed {
		return
	}
	ag.tbl.Range(fn)
}

// Size returns the number of distinct keys.
func (ag *Aggregator) Size() int { return ag.tbl.Size() }

// Capacity returns the fixed key ceiling.
func (ag *Aggregator) Capacity() int { return ag.tbl.Capacity() }

// Rows returns the number of samples folded in.
func (ag *Aggregator) Rows() uint64 { return ag.rows }

// Dropped returns the number of pairs rejected with ErrSaturated.
func (ag *Aggregator) Dropped() uint64 { return ag.dropped }

// Saturated reports whether any pair was ever dropped for lack of capacity.
func (ag *Aggregator) Saturated() bool { return ag.saturated }

// Stats returns the table's probe counters.
func (ag *Aggregator) Stats() table.Stats { return ag.tbl.Stats() }

// ArenaUsed returns the arena bytes handed out, or 0 without an arena.
func (ag *Aggregator) ArenaUsed() int {
	if ag.mem == nil {
		return 0
	}
	return ag.mem.Used()
}

// Close releases the arena. Keys and records returned earlier become
// invalid; copy them out (see package report) before closing.
func (ag *Aggregator) Close() error {
	if ag.closed {
		return nil
	}
	ag.closed = true
	if ag.mem != nil {
		return ag.mem.Destroy()
	}
	return nil
}

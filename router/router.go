// ════════════════════════════════════════════════════════════════════════════════════════════════
// Sharded Aggregation Engine
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: Producer-Side Batching, Shard Routing & Result Merge
//
// Description:
//   The reader goroutine routes every row to one of N shards by the top bits of xxh3(key),
//   appends it to that shard's pending batch, and hands full batches over an SPSC ring. A
//   pinned consumer per shard folds batches into its own Aggregator. Since a key always lands
//   on the same shard, shard tables stay disjoint; Merge still combines same-keyed records
//   with Record.Merge so results are correct for any routing.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package router

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"

	"onebrc/aggregator"
	"onebrc/constants"
	"onebrc/control"
	"onebrc/debug"
	"onebrc/hashing"
	"onebrc/ring"
	"onebrc/table"
	"onebrc/types"
	"onebrc/utils"
)

// ErrNotClosed reports Merge or Range before Close joined the consumers.
var ErrNotClosed = errors.New("router: engine still running")

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Options tunes the fan-out. Zero fields select the constants defaults.
type Options struct {
	RingSize  int           // in-flight batches per shard (power of two)
	BatchRows int           // rows per batch
	Pin       bool          // pin consumer i to CPU FirstCore+i
	FirstCore int           // first CPU used when pinning
	Cooldown  time.Duration // hot-flag cooldown
}

func (o *Options) fill() {
	if o.RingSize == 0 {
		o.RingSize = constants.RingSize
	}
	if o.BatchRows == 0 {
		o.BatchRows = constants.BatchRows
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BATCH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Batch carries rows for one shard. Keys are packed back to back in keys;
// ends[i] is the end offset of row i's key.
type Batch struct {
	keys    []byte
	ends    []int32
	samples []float64
}

func (b *Batch) add(key []byte, sample float64) {
	b.keys = append(b.keys, key...)
	b.ends = append(b.ends, int32(len(b.keys)))
	b.samples = append(b.samples, sample)
}

// Len returns the number of rows.
func (b *Batch) Len() int { return len(b.ends) }

func (b *Batch) reset() {
	b.keys = b.keys[:0]
	b.ends = b.ends[:0]
	b.samples = b.samples[:0]
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ENGINE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type shard struct {
	agg     *aggregator.Aggregator
	in      *ring.Ring[*Batch]
	pending *Batch
	done    chan struct{}
	errs    uint64 // rows rejected by the aggregator for reasons other than saturation
}

// Engine fans rows out to shards. Observe and Close must be called from a
// single goroutine.
type Engine struct {
	shards    []*shard
	shift     uint
	maxKey    int
	batchRows int
	flags     *control.Flags
	pool      sync.Pool
	saturated atomic.Uint32
	rows      uint64
	closed    bool
	released  bool
}

// New starts shards consumers, each owning an aggregator built from cfg.
// shards must be a power of two no larger than constants.MaxShards.
func New(shards int, cfg aggregator.Config, opts Options) (*Engine, error) {
	if shards <= 0 || shards > constants.MaxShards || !utils.IsPow2(uint64(shards)) {
		return nil, fmt.Errorf("%w: shard count %d", table.ErrInvalidArgument, shards)
	}
	opts.fill()
	if opts.RingSize < ring.MinSize || !utils.IsPow2(uint64(opts.RingSize)) || opts.BatchRows < 0 {
		return nil, fmt.Errorf("%w: ring %d / batch %d", table.ErrInvalidArgument, opts.RingSize, opts.BatchRows)
	}
	if cfg.MaxKeyBytes == 0 {
		cfg.MaxKeyBytes = constants.MaxKeyBytes
	}

	e := &Engine{
		shards:    make([]*shard, 0, shards),
		shift:     uint(64 - utils.Log2(uint64(shards))),
		maxKey:    cfg.MaxKeyBytes,
		batchRows: opts.BatchRows,
		flags:     control.New(opts.Cooldown),
	}
	e.pool.New = func() any {
		return &Batch{
			keys:    make([]byte, 0, constants.BatchKeyBytes),
			ends:    make([]int32, 0, e.batchRows),
			samples: make([]float64, 0, e.batchRows),
		}
	}

	for i := 0; i < shards; i++ {
		agg, err := aggregator.New(cfg)
		if err != nil {
			for _, s := range e.shards {
				_ = s.agg.Close()
			}
			return nil, err
		}
		e.shards = append(e.shards, &shard{
			agg:     agg,
			in:      ring.New[*Batch](opts.RingSize),
			pending: e.pool.Get().(*Batch),
			done:    make(chan struct{}),
		})
	}

	stop, hot := e.flags.Pointers()
	for i, s := range e.shards {
		core := -1
		if opts.Pin {
			core = opts.FirstCore + i
		}
		ring.PinnedConsumer(core, s.in, stop, hot, e.consume(s), s.done)
	}
	debug.DropFields("ROUTER", debug.Fields{"shards": shards, "ring": opts.RingSize, "batch": opts.BatchRows, "pin": opts.Pin})
	return e, nil
}

// consume returns the per-shard batch handler run on the consumer goroutine.
func (e *Engine) consume(s *shard) func(*Batch) {
	return func(b *Batch) {
		start := int32(0)
		for i, end := range b.ends {
			err := s.agg.Observe(b.keys[start:end], b.samples[i])
			start = end
			switch {
			case err == nil:
			case errors.Is(err, aggregator.ErrSaturated):
				if e.saturated.Load() == 0 {
					e.saturated.Store(1)
				}
			default:
				s.errs++
			}
		}
		b.reset()
		e.pool.Put(b)
		e.flags.PollCooldown()
	}
}

// Shard returns the shard index for key.
func (e *Engine) Shard(key []byte) int {
	return int(xxh3.Hash(key) >> e.shift)
}

// Observe queues one row. Argument errors are reported synchronously;
// saturation is applied by the consumer and surfaces through Saturated
// and Dropped.
func (e *Engine) Observe(key []byte, sample float64) error {
	if e.closed {
		return aggregator.ErrClosed
	}
	switch {
	case len(key) == 0:
		return aggregator.ErrEmptyKey
	case len(key) > e.maxKey:
		return aggregator.ErrKeyTooLong
	case math.IsNaN(sample) || math.IsInf(sample, 0):
		return aggregator.ErrBadSample
	}
	s := e.shards[e.Shard(key)]
	s.pending.add(key, sample)
	e.rows++
	if s.pending.Len() >= e.batchRows {
		e.flush(s)
	}
	return nil
}

func (e *Engine) flush(s *shard) {
	if s.pending.Len() == 0 {
		return
	}
	e.flags.SignalActivity()
	s.in.PushWait(s.pending)
	s.pending = e.pool.Get().(*Batch)
}

// Saturated reports whether any shard has dropped a row for lack of capacity.
// Safe to call from the producer while consumers run.
func (e *Engine) Saturated() bool { return e.saturated.Load() != 0 }

// Close flushes pending batches, stops the consumers and waits for them to
// drain. Shard aggregators stay readable until Release.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	for _, s := range e.shards {
		e.flush(s)
	}
	e.closed = true
	e.flags.Shutdown()
	for _, s := range e.shards {
		<-s.done
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RESULTS (after Close)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Rows returns the rows accepted by Observe.
func (e *Engine) Rows() uint64 { return e.rows }

// Shards returns the shard count.
func (e *Engine) Shards() int { return len(e.shards) }

// Dropped sums rows dropped for saturation across shards.
func (e *Engine) Dropped() uint64 {
	var n uint64
	for _, s := range e.shards {
		n += s.agg.Dropped()
	}
	return n
}

// Rejected sums rows the shard aggregators refused for other reasons.
func (e *Engine) Rejected() uint64 {
	var n uint64
	for _, s := range e.shards {
		n += s.errs
	}
	return n
}

// Sizes returns the distinct-key count of every shard.
func (e *Engine) Sizes() []int {
	out := make([]int, len(e.shards))
	for i, s := range e.shards {
		out[i] = s.agg.Size()
	}
	return out
}

// Range visits every shard record, shard by shard, until fn returns false.
func (e *Engine) Range(fn func(key []byte, r *types.Record) bool) error {
	if !e.closed {
		return ErrNotClosed
	}
	for _, s := range e.shards {
		cont := true
		s.agg.Range(func(k []byte, r *types.Record) bool {
			cont = fn(k, r)
			return cont
		})
		if !cont {
			break
		}
	}
	return nil
}

// Merge folds every shard into one heap-owned table with one record per
// key. The result outlives Release.
func (e *Engine) Merge() (*table.Table[types.Record], error) {
	if !e.closed {
		return nil, ErrNotClosed
	}
	total := 0
	for _, s := range e.shards {
		total += s.agg.Size()
	}
	out, err := table.New[types.Record](int(utils.NextPow2(uint64(total))), hashing.XXH3{},
		table.WithPolicy(table.IndexMask))
	if err != nil {
		return nil, err
	}
	for _, s := range e.shards {
		s.agg.Range(func(k []byte, r *types.Record) bool {
			dst, outcome := out.Upsert(k, func() *types.Record { return new(types.Record) })
			if outcome != table.Saturated {
				dst.Merge(r)
			}
			return true
		})
	}
	return out, nil
}

// Release frees every shard aggregator. Close must have returned.
func (e *Engine) Release() error {
	if !e.closed {
		return ErrNotClosed
	}
	if e.released {
		return nil
	}
	e.released = true
	var errs []error
	for _, s := range e.shards {
		errs = append(errs, s.agg.Close())
	}
	return errors.Join(errs...)
}

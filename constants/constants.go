// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Aggregation Tunables & Sizing Defaults
//
// Purpose:
//   - Defines table, arena, ring and generator defaults shared by every package.
//   - Every value is a compile-time constant; runtime overrides go through config.
//
// Notes:
//   - Table capacities are sized for the 1BRC station universe (~10K names)
//     with ≥ 6× headroom so quadratic chains stay short.
//   - Power-of-two sizes everywhere masking is used.
//
// ⚠️ No runtime logic here. All values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Hash Table ──────────────────────────────

const (
	// DefaultCapacity is the fixed slot count of a table when none is given.
	// 2^16 = 65,536 slots: power of two so the mask policy applies.
	DefaultCapacity = 1 << 16

	// MaxKeyBytes bounds a single station name. Longer keys are rejected at the
	// aggregator boundary so the arena sizing below is never exceeded.
	MaxKeyBytes = 100

	// DefaultStrategy names the hash strategy picked when configuration is silent.
	DefaultStrategy = "poly97"
)

// ─────────────────────────── Arena Layout ─────────────────────────────

const (
	// ArenaAlign is the alignment of every arena allocation (float64/uint64 words).
	ArenaAlign = 8
)

// ───────────────────────── Parsing & Ingest ───────────────────────────

const (
	// Delimiter separates the key from the sample on every data line.
	Delimiter = ';'

	// DefaultHeaderLines is the number of leading lines skipped before data.
	DefaultHeaderLines = 0

	// ScanBufferSize is the initial read buffer for streaming (non-mmap) input.
	ScanBufferSize = 1 << 20
)

// ─────────────────────────── Shard Fan-out ─────────────────────────────

const (
	// MaxShards caps the shard count (one pinned consumer per shard).
	MaxShards = 64

	// RingSize is the number of in-flight batches per shard ring.
	RingSize = 1 << 8

	// BatchRows is the number of rows carried by one batch.
	BatchRows = 1 << 12

	// BatchKeyBytes is the initial key buffer of a batch (BatchRows × avg name).
	BatchKeyBytes = BatchRows * 16
)

// ──────────────────────── Data Generation ──────────────────────────

const (
	// DefaultStdDev is the standard deviation applied around a station mean.
	DefaultStdDev = 10.0

	// MaxRows caps a generated file at one billion rows.
	MaxRows = 1_000_000_000

	// GenBlockRows is the number of rows rendered per worker block.
	GenBlockRows = 1 << 16

	// TempLimit bounds generated temperatures to the 1BRC range [-99.9, 99.9].
	TempLimit = 99.9
)

// Package router provides sharded fan-out of (key, sample) rows to per-core
// aggregators.
//
// Key Components:
//
//   - New: builds N shards, each owning an Aggregator, an SPSC ring and one
//     pinned consumer goroutine
//   - Observe: batches a row for the shard chosen by the top bits of xxh3(key)
//   - Close: flushes partial batches, raises stop, joins every consumer
//   - Merge: folds all shard records into one table with Record.Merge
//
// Threading Model:
//
//   - One producer goroutine (the reader) calls Observe and Close
//   - Each shard has one consumer goroutine applying batches to its table
//   - Shard tables are never touched by more than one goroutine at a time;
//     no locks appear on the row path
package router

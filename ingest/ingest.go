// ════════════════════════════════════════════════════════════════════════════════════════════════
// Ingest Driver
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: Line Feed from Source to Observer
//
// Description:
//   Skips header lines, parses every remaining line and hands (key, sample) pairs to an
//   Observer: a single Aggregator or a sharded router Engine. Malformed lines are counted and
//   skipped. Saturation either drops the pair and continues, or stops ingestion at the first
//   dropped pair.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"onebrc/aggregator"
	"onebrc/constants"
	"onebrc/debug"
	"onebrc/parser"
)

// Observer receives parsed pairs.
type Observer interface {
	Observe(key []byte, sample float64) error
}

// saturator is implemented by observers that learn about saturation
// asynchronously (router.Engine).
type saturator interface {
	Saturated() bool
}

// SaturationPolicy decides what happens to pairs for new keys once the
// table is full.
type SaturationPolicy uint8

const (
	// Drop discards the pair and keeps ingesting; existing keys keep updating.
	Drop SaturationPolicy = iota
	// Stop ends ingestion at the first dropped pair.
	Stop
)

func (p SaturationPolicy) String() string {
	if p == Stop {
		return "stop"
	}
	return "drop"
}

// ParseSaturationPolicy maps "drop" / "stop" to a policy.
func ParseSaturationPolicy(s string) (SaturationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "drop":
		return Drop, nil
	case "stop":
		return Stop, nil
	}
	return Drop, fmt.Errorf("ingest: unknown saturation policy %q", s)
}

// Options controls one ingestion run.
type Options struct {
	Delimiter  byte             // 0 selects constants.Delimiter
	Skip       int              // leading header lines
	Saturation SaturationPolicy // drop or stop
}

// Stats summarises one run.
type Stats struct {
	Lines     uint64 // data lines seen after the header
	Rows      uint64 // pairs accepted by the observer
	Header    int    // header lines skipped
	Blank     uint64 // empty lines
	Malformed uint64 // lines rejected by the parser or the observer's guards
	Dropped   uint64 // pairs dropped for saturation (synchronous observers only)
	Stopped   bool   // ingestion ended early under the Stop policy
}

// checkEvery bounds how often the context and async saturation are polled.
const checkEvery = 1 << 12

type feeder struct {
	ctx   context.Context
	obs   Observer
	sat   saturator
	opts  Options
	stats Stats
	err   error
}

func newFeeder(ctx context.Context, obs Observer, opts Options) *feeder {
	if opts.Delimiter == 0 {
		opts.Delimiter = constants.Delimiter
	}
	f := &feeder{ctx: ctx, obs: obs, opts: opts}
	f.sat, _ = obs.(saturator)
	return f
}

// line handles one raw line; false ends the run.
func (f *feeder) line(raw []byte) bool {
	f.stats.Lines++
	if f.stats.Lines%checkEvery == 0 {
		if err := f.ctx.Err(); err != nil {
			f.err = err
			return false
		}
		if f.opts.Saturation == Stop && f.sat != nil && f.sat.Saturated() {
			f.stats.Stopped = true
			return false
		}
	}

	key, sample, err := parser.ParseLine(raw, f.opts.Delimiter)
	switch {
	case err == nil:
	case errors.Is(err, parser.ErrBlankLine):
		f.stats.Blank++
		return true
	case errors.Is(err, parser.ErrMalformed):
		f.malformed(err)
		return true
	default:
		f.err = err
		return false
	}

	err = f.obs.Observe(key, sample)
	switch {
	case err == nil:
		f.stats.Rows++
	case errors.Is(err, aggregator.ErrSaturated):
		f.stats.Dropped++
		if f.opts.Saturation == Stop {
			f.stats.Stopped = true
			return false
		}
	case errors.Is(err, aggregator.ErrEmptyKey),
		errors.Is(err, aggregator.ErrKeyTooLong),
		errors.Is(err, aggregator.ErrBadSample):
		f.malformed(err)
	default:
		f.err = err
		return false
	}
	return true
}

func (f *feeder) malformed(err error) {
	f.stats.Malformed++
	if f.stats.Malformed == 1 {
		debug.DropError(fmt.Sprintf("INGEST line %d", f.stats.Lines+uint64(f.opts.Skip)), err)
	}
}

func (f *feeder) finish() (Stats, error) {
	if f.err == nil && f.opts.Saturation == Stop && f.sat != nil && f.sat.Saturated() {
		f.stats.Stopped = true
	}
	return f.stats, f.err
}

// Run feeds every line of data to obs.
func Run(ctx context.Context, data []byte, obs Observer, opts Options) (Stats, error) {
	f := newFeeder(ctx, obs, opts)
	f.stats.Header = parser.ForEachLine(data, opts.Skip, f.line)
	return f.finish()
}

// RunReader is Run over a stream, for stdin and pipes.
func RunReader(ctx context.Context, r io.Reader, obs Observer, opts Options) (Stats, error) {
	f := newFeeder(ctx, obs, opts)
	header, err := parser.Scan(r, opts.Skip, f.line)
	f.stats.Header = header
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("ingest: read: %w", err)
	}
	return f.finish()
}

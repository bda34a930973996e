package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	rtdebug "runtime/debug"

	"github.com/urfave/cli"

	"onebrc/aggregator"
	"onebrc/config"
	"onebrc/debug"
	"onebrc/ingest"
	"onebrc/report"
	"onebrc/router"
)

// aggregateKeys maps command flags to configuration keys.
var aggregateKeys = map[string]string{
	"capacity":   "table.capacity",
	"strategy":   "table.strategy",
	"policy":     "table.policy",
	"arena":      "table.arena",
	"skip":       "ingest.skip",
	"delimiter":  "ingest.delimiter",
	"saturation": "ingest.saturation",
	"shards":     "shard.count",
	"pin":        "shard.pin",
	"format":     "output.format",
	"sorted":     "output.sorted",
	"sqlite":     "output.sqlite",
	"digest":     "output.digest",
}

func aggregateFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "capacity", Usage: "fixed number of distinct keys"},
		cli.StringFlag{Name: "strategy", Usage: strategyUsage()},
		cli.StringFlag{Name: "policy", Usage: "index policy: mod (any capacity) or mask (power of two)"},
		cli.BoolTFlag{Name: "arena", Usage: "carve keys and records from one bump arena"},
		cli.IntFlag{Name: "skip", Usage: "header lines to skip"},
		cli.StringFlag{Name: "delimiter", Usage: "single-byte key/sample delimiter"},
		cli.StringFlag{Name: "saturation", Usage: "on a full table: drop (continue) or stop"},
		cli.IntFlag{Name: "shards", Usage: "shard count (power of two); 0 aggregates on one goroutine"},
		cli.BoolFlag{Name: "pin", Usage: "pin shard consumers to CPUs"},
		cli.StringFlag{Name: "format", Usage: "output format: text or json"},
		cli.BoolTFlag{Name: "sorted", Usage: "sort output by key"},
		cli.StringFlag{Name: "sqlite", Usage: "also export results to this SQLite database"},
		cli.BoolFlag{Name: "digest", Usage: "log the SHA3-256 digest of the results"},
	}
}

func aggregateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("aggregate: exactly one input path (or -) is required")
	}
	cfg, err := loadConfig(c, aggregateKeys)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	_, err = runAggregate(ctx, cfg, c.Args().First(), os.Stdout)
	return err
}

// Summary describes one aggregate run.
type Summary struct {
	Ingest    ingest.Stats
	Keys      int
	Capacity  int
	Dropped   uint64
	Saturated bool
	Digest    string
	Results   []report.Result
}

// sink is what runAggregate feeds and then drains.
type sink interface {
	ingest.Observer
	finish() ([]report.Result, error)
	dropped() uint64
	saturated() bool
}

// single wraps one Aggregator.
type single struct{ *aggregator.Aggregator }

func (s single) finish() ([]report.Result, error) {
	rs := report.Collect(s.Aggregator)
	st := s.Stats()
	debug.DropFields("TABLE", debug.Fields{
		"size": s.Size(), "capacity": s.Capacity(), "probes": st.Probes,
		"longest": st.Longest, "sweeps": st.Sweeps, "arena": s.ArenaUsed(),
	})
	return rs, s.Close()
}
func (s single) dropped() uint64 { return s.Dropped() }
func (s single) saturated() bool { return s.Saturated() }

// sharded wraps a router Engine.
type sharded struct{ *router.Engine }

func (s sharded) finish() ([]report.Result, error) {
	if err := s.Close(); err != nil {
		return nil, err
	}
	merged, err := s.Merge()
	if err != nil {
		return nil, err
	}
	debug.DropFields("SHARDS", debug.Fields{"sizes": s.Sizes(), "rejected": s.Rejected()})
	rs := report.Collect(merged)
	return rs, s.Release()
}
func (s sharded) dropped() uint64 { return s.Dropped() }
func (s sharded) saturated() bool { return s.Saturated() }

func newSink(cfg *config.Config) (sink, error) {
	acfg, err := cfg.AggregatorConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Shard.Count > 0 {
		e, err := router.New(cfg.Shard.Count, acfg, cfg.RouterOptions())
		if err != nil {
			return nil, err
		}
		return sharded{e}, nil
	}
	ag, err := aggregator.New(acfg)
	if err != nil {
		return nil, err
	}
	return single{ag}, nil
}

// runAggregate folds input ("-" for stdin) and writes the report to out.
func runAggregate(ctx context.Context, cfg *config.Config, input string, out io.Writer) (*Summary, error) {
	// PHASE 1: construction
	s, err := newSink(cfg)
	if err != nil {
		return nil, err
	}

	// Construction garbage is collected now so the ingest loop starts on a
	// clean heap.
	runtime.GC()
	rtdebug.FreeOSMemory()

	// PHASE 2: ingest
	debug.DropMessage("INGEST", "reading "+input)
	st, ingestErr := feed(ctx, input, s, cfg.IngestOptions())
	rs, finishErr := s.finish()
	if err := errors.Join(ingestErr, finishErr); err != nil {
		return nil, err
	}

	// PHASE 3: report
	sum := &Summary{
		Ingest:    st,
		Keys:      len(rs),
		Capacity:  cfg.Table.Capacity,
		Dropped:   s.dropped(),
		Saturated: s.saturated(),
		Results:   rs,
	}
	if cfg.Output.Sorted {
		report.Sort(rs)
	}
	if cfg.Output.Digest || cfg.Output.Format == "json" {
		sum.Digest = report.Digest(rs)
	}

	switch cfg.Output.Format {
	case "json":
		err = report.WriteJSON(out, report.Document{
			Source:   input,
			Strategy: cfg.Table.Strategy,
			Capacity: cfg.Table.Capacity,
			Results:  rs,
		})
	default:
		err = report.WriteText(out, rs)
	}
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	if cfg.Output.SQLite != "" {
		if err := report.WriteSQLite(ctx, cfg.Output.SQLite, rs); err != nil {
			return nil, err
		}
		debug.DropMessage("EXPORT", fmt.Sprintf("%d stations → %s", len(rs), cfg.Output.SQLite))
	}

	fields := debug.Fields{
		"lines": st.Lines, "rows": st.Rows, "header": st.Header, "blank": st.Blank,
		"malformed": st.Malformed, "keys": sum.Keys, "capacity": sum.Capacity, "dropped": sum.Dropped,
	}
	if sum.Digest != "" {
		fields["digest"] = sum.Digest
	}
	debug.DropFields("SUMMARY", fields)
	if sum.Saturated {
		debug.DropError("CAPACITY", fmt.Errorf("%w: %d pairs for new keys dropped", aggregator.ErrSaturated, sum.Dropped))
	}
	if st.Stopped {
		debug.DropMessage("CAPACITY", "ingestion stopped at first saturation")
	}
	return sum, nil
}

func feed(ctx context.Context, input string, obs ingest.Observer, opts ingest.Options) (ingest.Stats, error) {
	if input == "-" {
		return ingest.RunReader(ctx, os.Stdin, obs, opts)
	}
	src, err := ingest.Open(input)
	if err != nil {
		return ingest.Stats{}, err
	}
	st, err := ingest.Run(ctx, src.Bytes(), obs, opts)
	return st, errors.Join(err, src.Close())
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli"

	"onebrc/config"
	"onebrc/debug"
	"onebrc/gen"
)

var generateKeys = map[string]string{
	"rows":      "gen.rows",
	"stddev":    "gen.stddev",
	"seed":      "gen.seed",
	"workers":   "gen.workers",
	"stations":  "gen.stations",
	"header":    "gen.header",
	"delimiter": "ingest.delimiter",
}

func generateFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "rows", Usage: "number of measurement lines"},
		cli.Float64Flag{Name: "stddev", Usage: "spread of samples around each station mean"},
		cli.Uint64Flag{Name: "seed", Usage: "random seed; equal seeds give equal files"},
		cli.IntFlag{Name: "workers", Usage: "render goroutines (0 = GOMAXPROCS)"},
		cli.StringFlag{Name: "stations", Usage: "file of name;mean lines replacing the built-in list"},
		cli.BoolFlag{Name: "header", Usage: "prefix two comment lines (aggregate with --skip 2)"},
		cli.StringFlag{Name: "delimiter", Usage: "single-byte key/sample delimiter"},
	}
}

func generateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("generate: exactly one output path (or -) is required")
	}
	cfg, err := loadConfig(c, generateKeys)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	_, err = runGenerate(ctx, cfg, c.Args().First(), os.Stdout)
	return err
}

// headerLines returns the comment lines written by --header.
func headerLines(rows int) []string {
	return []string{
		"# onebrc synthetic measurements",
		fmt.Sprintf("# %d rows, station;temperature", rows),
	}
}

func generateOptions(cfg *config.Config) (gen.Options, error) {
	opts := gen.Options{
		Rows:      cfg.Gen.Rows,
		StdDev:    cfg.Gen.StdDev,
		Seed:      cfg.Gen.Seed,
		Workers:   cfg.Gen.Workers,
		Delimiter: cfg.IngestOptions().Delimiter,
	}
	if cfg.Gen.Header {
		opts.Header = headerLines(cfg.Gen.Rows)
	}
	if cfg.Gen.Stations != "" {
		f, err := os.Open(cfg.Gen.Stations)
		if err != nil {
			return opts, err
		}
		defer f.Close()
		st, err := gen.LoadStations(f)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", cfg.Gen.Stations, err)
		}
		opts.Stations = st
	}
	return opts, nil
}

// runGenerate writes a synthetic file to output, or to stdout for "-".
func runGenerate(ctx context.Context, cfg *config.Config, output string, stdout io.Writer) (n int64, err error) {
	opts, err := generateOptions(cfg)
	if err != nil {
		return 0, err
	}

	w := stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return 0, err
		}
		defer func() { err = errors.Join(err, f.Close()) }()
		w = f
	}
	bw := bufio.NewWriterSize(w, 1<<20)

	start := time.Now()
	n, err = gen.Generate(ctx, bw, opts)
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}
	debug.DropFields("GEN", debug.Fields{
		"rows": opts.Rows, "bytes": n, "seed": opts.Seed, "elapsed": time.Since(start).Round(time.Millisecond),
	})
	return n, nil
}

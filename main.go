// ════════════════════════════════════════════════════════════════════════════════════════════════
// onebrc - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: CLI & Run Orchestration
//
// Description:
//   Two commands over one layered configuration:
//     aggregate <file|->  fold a measurement file into per-station min/max/mean
//     generate  <file|->  write a synthetic measurement file
//
// Architecture:
//   - Phase 0: logging + configuration (defaults → file → ONEBRC_* env → flags)
//   - Phase 1: construction; every InvalidArgument aborts here, before any input is read
//   - Phase 2: ingest / generate under a signal-cancelled context
//   - Phase 3: report, export and summary
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"onebrc/config"
	"onebrc/debug"
	"onebrc/hashing"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		debug.DropError("FATAL", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "onebrc"
	app.Usage = "fixed-capacity streaming aggregation of station measurements"
	app.HideVersion = true

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "optional config file (yaml, json or toml)",
		},
		cli.StringFlag{
			Name:  "log, l",
			Usage: "log level: debug,info,warning,error",
			Value: "info",
		},
	}

	app.Before = func(c *cli.Context) error {
		return debug.Setup(c.String("log"), nil)
	}

	app.Commands = []cli.Command{
		{
			Name:      "aggregate",
			Aliases:   []string{"agg"},
			Usage:     "aggregate a measurement file (use - for stdin)",
			ArgsUsage: "<file|->",
			Flags:     aggregateFlags(),
			Action:    aggregateAction,
		},
		{
			Name:      "generate",
			Aliases:   []string{"gen"},
			Usage:     "generate a synthetic measurement file (use - for stdout)",
			ArgsUsage: "<file|->",
			Flags:     generateFlags(),
			Action:    generateAction,
		},
	}
	return app
}

// loadConfig builds the layered configuration; only flags the user actually
// set override lower layers.
func loadConfig(c *cli.Context, keys map[string]string) (*config.Config, error) {
	overrides := map[string]any{}
	if c.GlobalIsSet("log") {
		overrides["log.level"] = c.GlobalString("log")
	}
	for flag, key := range keys {
		if !c.IsSet(flag) {
			continue
		}
		overrides[key] = flagValue(c, flag)
	}
	cfg, err := config.Load(c.GlobalString("config"), overrides)
	if err != nil {
		return nil, err
	}
	if err := debug.Setup(cfg.Log.Level, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

func flagValue(c *cli.Context, name string) any {
	for _, f := range c.Command.Flags {
		if f.GetName() != name {
			continue
		}
		switch f.(type) {
		case cli.IntFlag:
			return c.Int(name)
		case cli.Uint64Flag:
			return c.Uint64(name)
		case cli.Float64Flag:
			return c.Float64(name)
		case cli.BoolFlag:
			return c.Bool(name)
		case cli.BoolTFlag:
			return c.BoolT(name)
		}
	}
	return c.String(name)
}

// signalContext cancels on SIGINT/SIGTERM so a long run stops cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func strategyUsage() string {
	return "key hash strategy: " + strings.Join(hashing.Names(), ", ")
}

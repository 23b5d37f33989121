// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// cnl publishes and follows named-data streams over TCP.
//
// "cnl produce" listens for consumers and publishes one sequenced
// object per line of standard input (or one generated object per
// --interval). "cnl consume" dials a producer, follows the stream's
// _latest pointer, and prints each object as "<sequence>\t<content>".
//
// Configuration comes from the file named by --config or CNL_CONFIG.
// Without either, built-in defaults apply and --prefix is required.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cnl/lib/config"
	"github.com/bureau-foundation/cnl/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the flags shared by both subcommands.
type options struct {
	configPath   string
	prefix       string
	address      string
	pipelineSize int
	interval     time.Duration
	count        int
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// Handle --version before flag parsing so it works without a
	// subcommand.
	if len(args) > 0 && args[0] == "--version" {
		version.Print(stdout, "cnl")
		return nil
	}
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return nil
	}

	command := args[0]
	if command != "produce" && command != "consume" {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", command)
	}

	var opts options
	flagSet := pflag.NewFlagSet("cnl "+command, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&opts.prefix, "prefix", "p", "", "stream name prefix, overriding stream.prefix")
	switch command {
	case "produce":
		flagSet.StringVar(&opts.address, "listen", "", "listen address, overriding face.listen")
		flagSet.DurationVar(&opts.interval, "interval", 0, "publish a generated object at this interval instead of reading stdin")
	case "consume":
		flagSet.StringVar(&opts.address, "connect", "", "producer address, overriding face.connect")
		flagSet.IntVar(&opts.pipelineSize, "pipeline-size", 0, "consumer window, overriding stream.pipeline_size (0 polls _latest)")
		flagSet.IntVarP(&opts.count, "count", "n", 0, "exit after this many objects (0 runs until interrupted)")
	}
	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg, err := loadConfig(flagSet, &opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	logger = logger.With("command", command)

	switch command {
	case "produce":
		return produce(ctx, cfg, &opts, stdin, logger)
	default:
		return consume(ctx, cfg, &opts, stdout, logger)
	}
}

// loadConfig reads the config file, if any, and applies flag
// overrides that were explicitly set.
func loadConfig(flagSet *pflag.FlagSet, opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.prefix != "" {
		cfg.Stream.Prefix = opts.prefix
	}
	if flagSet.Changed("listen") {
		cfg.Face.Listen = opts.address
	}
	if flagSet.Changed("connect") {
		cfg.Face.Connect = opts.address
	}
	if flagSet.Changed("pipeline-size") {
		cfg.Stream.PipelineSize = opts.pipelineSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `cnl publishes and follows named-data streams.

Usage:
  cnl produce [--config FILE] [--prefix NAME] [--listen ADDR] [--interval DURATION]
  cnl consume [--config FILE] [--prefix NAME] [--connect ADDR] [--pipeline-size N] [--count N]
  cnl --version

The producer publishes each line of standard input as one sequenced
object under NAME. The consumer prints "<sequence>\t<content>" for each
object it receives, in sequence order when --pipeline-size is positive.

Configuration is read from --config or $%s (YAML, or JSON with
comments for .json/.jsonc files).
`, config.EnvironmentVariable)
}

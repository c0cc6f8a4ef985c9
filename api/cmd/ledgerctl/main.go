package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"peer-review/api/internal/app"
	"peer-review/api/internal/cache"
	"peer-review/api/internal/config"
	"peer-review/api/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewZap(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ledgerStore, closeLedger, err := app.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "ledger", zap.Error(err))
	}
	defer closeLedger()

	// Sessions never outlive the process, so redis is not needed here.
	console, err := app.Console(cfg, ledgerStore, cache.NewMemory(), logger)
	if err != nil {
		logger.Fatal(ctx, "admin console", zap.Error(err))
	}

	cli := &commandLine{
		console: console,
		out:     os.Stdout,
		in:      bufio.NewReader(os.Stdin),
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

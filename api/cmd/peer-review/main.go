package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"peer-review/api/internal/app"
	"peer-review/api/internal/config"
	"peer-review/api/internal/handle"
	"peer-review/api/internal/httpserver"
	"peer-review/api/internal/logging"
	"peer-review/api/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := cfg.RequireAdminSecret(); err != nil {
		logger.Fatal(ctx, "admin console", zap.Error(err))
	}

	ledgerStore, closeLedger, err := app.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "ledger", zap.Error(err))
	}
	defer closeLedger()

	sessions, closeCache, err := app.OpenCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "cache", zap.Error(err))
	}
	defer closeCache()

	wf, err := app.Workflow(cfg, ledgerStore, logger)
	if err != nil {
		logger.Fatal(ctx, "workflow", zap.Error(err))
	}
	console, err := app.Console(cfg, ledgerStore, sessions, logger)
	if err != nil {
		logger.Fatal(ctx, "admin console", zap.Error(err))
	}

	if cfg.TelegramBotToken != "" {
		go func() {
			if err := telegram.Start(ctx, cfg.TelegramBotToken, wf, cfg.MaxUploadBytes, logger); err != nil {
				logger.Error(ctx, "telegram bot stopped", zap.Error(err))
			}
		}()
	}

	h := handle.New(wf, console, cfg.MaxUploadBytes, logger)
	logger.Info(ctx, "starting peer-review",
		zap.String("port", cfg.Port),
		zap.String("llm", cfg.LLMProvider),
		zap.String("ledger", cfg.LedgerBackend))
	if err := httpserver.Run(ctx, ":"+cfg.Port, h.Routes(), logger); err != nil {
		logger.Fatal(ctx, "http server", zap.Error(err))
	}
}

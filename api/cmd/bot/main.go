package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"peer-review/api/internal/app"
	"peer-review/api/internal/config"
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

	if cfg.TelegramBotToken == "" {
		logger.Fatal(ctx, "missing required env TELEGRAM_BOT_TOKEN")
	}

	ledgerStore, closeLedger, err := app.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "ledger", zap.Error(err))
	}
	defer closeLedger()

	wf, err := app.Workflow(cfg, ledgerStore, logger)
	if err != nil {
		logger.Fatal(ctx, "workflow", zap.Error(err))
	}

	// Health endpoint for the hosting platform; polling does not need it.
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		if err := httpserver.Run(ctx, ":"+cfg.Port, r, logger); err != nil {
			logger.Error(ctx, "health server", zap.Error(err))
		}
	}()

	if err := telegram.Start(ctx, cfg.TelegramBotToken, wf, cfg.MaxUploadBytes, logger); err != nil {
		logger.Fatal(ctx, "telegram", zap.Error(err))
	}
}

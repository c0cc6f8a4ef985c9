// Package app builds the collaborators shared by the binaries from a Config.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"peer-review/api/internal/admin"
	"peer-review/api/internal/cache"
	"peer-review/api/internal/config"
	"peer-review/api/internal/feedback"
	"peer-review/api/internal/ledger"
	"peer-review/api/internal/llm"
	"peer-review/api/internal/llm/gemini"
	"peer-review/api/internal/llm/openai"
	"peer-review/api/internal/logging"
	"peer-review/api/internal/rubric"
	"peer-review/api/internal/store"
	"peer-review/api/internal/submission"
)

func nopClose() error { return nil }

// OpenLedger returns the configured ledger backend and its closer.
func OpenLedger(ctx context.Context, cfg *config.Config, log *logging.Logger) (ledger.Store, func() error, error) {
	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		repo := store.NewSubmissionRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure ledger schema: %w", err)
		}
		log.Info(ctx, "ledger: postgres")
		return repo, db.Close, nil
	default:
		log.Info(ctx, "ledger: csv", zap.String("path", cfg.LedgerPath))
		return ledger.NewCSVStore(cfg.LedgerPath), nopClose, nil
	}
}

// OpenCache uses redis when REDIS_URL is set, memory otherwise.
func OpenCache(ctx context.Context, cfg *config.Config, log *logging.Logger) (cache.Cache, func() error, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), nopClose, nil
	}
	rdb, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info(ctx, "admin cache: redis")
	return cache.NewRedisCache(rdb), rdb.Close, nil
}

// Engines registers every engine that has a key.
func Engines(cfg *config.Config) *llm.Engines {
	engs := &llm.Engines{}
	if cfg.OpenAIAPIKey != "" {
		engs.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
	if cfg.GeminiAPIKey != "" {
		engs.Gemini = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	return engs
}

func Requester(cfg *config.Config, log *logging.Logger) (*feedback.Requester, *rubric.Loader, error) {
	if err := cfg.RequireLLMKey(); err != nil {
		return nil, nil, err
	}
	eng, err := Engines(cfg).GetEngine(cfg.LLMProvider)
	if err != nil {
		return nil, nil, err
	}
	rubrics := rubric.New(cfg.PromptDir, log)
	return feedback.New(eng, rubrics, cfg.ImageMaxTokens, log), rubrics, nil
}

func Workflow(cfg *config.Config, ledgerStore ledger.Store, log *logging.Logger) (*submission.Workflow, error) {
	fb, rubrics, err := Requester(cfg, log)
	if err != nil {
		return nil, err
	}
	return submission.New(ledgerStore, rubrics, fb, log), nil
}

func Console(cfg *config.Config, ledgerStore ledger.Store, c cache.Cache, log *logging.Logger) (*admin.Console, error) {
	if err := cfg.RequireAdminSecret(); err != nil {
		return nil, err
	}
	console, err := admin.New(ledgerStore, cfg.AdminPassword, c, log)
	if err != nil {
		return nil, err
	}
	if cfg.AdminSessionTTL > 0 {
		console.SessionTTL = cfg.AdminSessionTTL
	}
	if cfg.AdminArmTTL > 0 {
		console.ArmTTL = cfg.AdminArmTTL
	}
	return console, nil
}

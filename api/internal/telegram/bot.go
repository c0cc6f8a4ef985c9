package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"peer-review/api/internal/logging"
	"peer-review/api/internal/submission"
)

// Start connects to Telegram and long-polls until ctx is cancelled.
func Start(ctx context.Context, token string, wf *submission.Workflow, maxUpload int64, log *logging.Logger) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	log.Info(ctx, "telegram bot authorized", zap.String("username", bot.Self.UserName))

	r := NewRouter(bot, wf, maxUpload, log)
	RunPolling(ctx, bot, log, r.HandleUpdate)
	return nil
}

package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"peer-review/api/internal/course"
	"peer-review/api/internal/logging"
	"peer-review/api/internal/submission"
	"peer-review/api/internal/util"
)

const maxMessageLen = 3900

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot       Bot
	Workflow  *submission.Workflow
	Log       *logging.Logger
	MaxUpload int64

	httpc *http.Client
}

func NewRouter(bot Bot, wf *submission.Workflow, maxUpload int64, log *logging.Logger) *Router {
	if log == nil {
		log = logging.Nop()
	}
	return &Router{
		Bot:       bot,
		Workflow:  wf,
		Log:       log,
		MaxUpload: maxUpload,
		httpc:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}
	if msg.Document != nil {
		r.acceptDocument(ctx, msg)
		return
	}
	r.send(msg.Chat.ID, usageText())
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, usageText())
	case "modules":
		r.send(cid, modulesText())
	default:
		r.send(cid, "Unknown command. Try /start or /modules.")
	}
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.Log.Warn(context.Background(), "telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func usageText() string {
	return "Send your report as a .docx file with the caption \"<module> <group>\", for example \"5 12\".\n" +
		"Each group can submit once per module. /modules lists the modules."
}

func modulesText() string {
	var b strings.Builder
	b.WriteString("Modules:\n")
	for _, m := range course.All() {
		fmt.Fprintf(&b, "%d (%s): %s", m.Number, m.Slug, m.Label)
		if m.AnalyzesFigures {
			b.WriteString(", figures reviewed")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// replies renders a finished review as Telegram-sized messages.
func replies(res *submission.Result) []string {
	var out []string
	if res.FigureFeedback != "" {
		out = append(out, util.SplitMessage("Figure feedback:\n\n"+res.FigureFeedback, maxMessageLen)...)
	}
	head := fmt.Sprintf("Feedback for %s, group %s:\n\n", res.Module.Label, res.Group)
	out = append(out, util.SplitMessage(head+res.Feedback, maxMessageLen)...)
	if res.LedgerWarning != "" {
		out = append(out, "Warning: "+res.LedgerWarning)
	}
	return out
}

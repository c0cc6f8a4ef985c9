package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"peer-review/api/internal/submission"
)

var ErrCaption = errors.New(`caption must be "<module> <group>"`)

// ParseCaption splits "<module> <group>"; the group is the last field so
// full module labels with spaces are accepted.
func ParseCaption(caption string) (module, group string, err error) {
	fields := strings.Fields(caption)
	if len(fields) < 2 {
		return "", "", ErrCaption
	}
	group = fields[len(fields)-1]
	module = strings.Join(fields[:len(fields)-1], " ")
	return module, group, nil
}

func (r *Router) acceptDocument(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	doc := msg.Document

	module, group, err := ParseCaption(msg.Caption)
	if err != nil {
		r.send(cid, usageText())
		return
	}
	if r.MaxUpload > 0 && int64(doc.FileSize) > r.MaxUpload {
		r.send(cid, fmt.Sprintf("The file is too large (limit %d bytes).", r.MaxUpload))
		return
	}

	data, err := r.download(ctx, doc.FileID)
	if err != nil {
		r.Log.Error(ctx, "telegram download failed", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, "Could not download the file from Telegram, please try again.")
		return
	}

	r.send(cid, "Document received, reviewing. This can take a minute.")
	res, err := r.Workflow.Submit(ctx, submission.Input{
		Module:   module,
		Group:    group,
		Filename: doc.FileName,
		Document: data,
	})
	if err != nil {
		r.Log.Info(ctx, "telegram submission rejected",
			zap.Int64("chat_id", cid),
			zap.String("state", string(res.State)),
			zap.Error(err))
		r.send(cid, submission.UserMessage(err))
		return
	}
	for _, text := range replies(res) {
		r.send(cid, text)
	}
}

func (r *Router) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file %d", resp.StatusCode)
	}
	limit := r.MaxUpload
	if limit <= 0 {
		limit = 20 << 20
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return b, nil
}

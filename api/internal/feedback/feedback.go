// Package feedback turns rubric text and an extracted submission into
// requests against an llm.Engine.
package feedback

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"peer-review/api/internal/course"
	"peer-review/api/internal/docx"
	"peer-review/api/internal/llm"
	"peer-review/api/internal/logging"
	"peer-review/api/internal/rubric"
)

const (
	NoFiguresMessage = "No figures were found in the submitted document."

	DefaultImageMaxTokens = 1000
)

var ErrTextFeedback = errors.New("text feedback request failed")

type Requester struct {
	Engine         llm.Engine
	Rubrics        *rubric.Loader
	ImageMaxTokens int
	Log            *logging.Logger

	// TextMaxTokens and TextTemperature tune the text request; zero values
	// leave the engine defaults.
	TextMaxTokens   int
	TextTemperature *float32
}

func New(engine llm.Engine, rubrics *rubric.Loader, imageMaxTokens int, log *logging.Logger) *Requester {
	if imageMaxTokens <= 0 {
		imageMaxTokens = DefaultImageMaxTokens
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Requester{Engine: engine, Rubrics: rubrics, ImageMaxTokens: imageMaxTokens, Log: log}
}

// RequestTextFeedback sends the rubric as the system message and the
// submission as a single user turn. Failures are not retried.
func (r *Requester) RequestTextFeedback(ctx context.Context, rubricText, submission string) (string, error) {
	out, err := r.Engine.Complete(ctx, llm.Request{
		System:      rubricText,
		Turns:       []llm.Turn{{Text: submission}},
		MaxTokens:   r.TextMaxTokens,
		Temperature: r.TextTemperature,
	})
	if err != nil {
		r.Log.Error(ctx, "text feedback failed",
			zap.String("engine", r.Engine.Name()),
			zap.String("model", r.Engine.GetModel()),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrTextFeedback, err)
	}
	return out, nil
}

// RequestImageFeedback never returns an error: a failed request is
// reported inside the returned text.
func (r *Requester) RequestImageFeedback(ctx context.Context, images []docx.Image, m course.Module) string {
	if len(images) == 0 {
		return NoFiguresMessage
	}

	req := llm.Request{
		System:    r.Rubrics.LoadImageRubric(ctx, m),
		MaxTokens: r.ImageMaxTokens,
		Turns:     make([]llm.Turn, 0, len(images)),
	}
	for i, img := range images {
		req.Turns = append(req.Turns, llm.Turn{
			Text:   fmt.Sprintf("Figure %d of %d:", i+1, len(images)),
			Images: []llm.Image{{MIMEType: img.MIMEType, Data: img.Data}},
		})
	}

	out, err := r.Engine.Complete(ctx, req)
	if err != nil {
		r.Log.Warn(ctx, "image feedback failed",
			zap.String("module", m.Label),
			zap.Int("images", len(images)),
			zap.Error(err))
		return "Figure feedback unavailable: " + err.Error()
	}
	return out
}

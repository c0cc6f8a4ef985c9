package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"peer-review/api/internal/app"
	"peer-review/api/internal/config"
	"peer-review/api/internal/course"
	"peer-review/api/internal/docx"
	"peer-review/api/internal/feedback"
	"peer-review/api/internal/logging"
	"peer-review/api/internal/rubric"
)

const (
	gradeTemperature float32 = 0.4
	gradeMaxTokens           = 1000
)

var errUsage = errors.New("usage: grade -module <number|slug|label> -file <report.docx|report.txt>")

type grader struct {
	fb      *feedback.Requester
	rubrics *rubric.Loader
	log     *logging.Logger
	out     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := flag.NewFlagSet("grade", flag.ExitOnError)
	moduleArg := fs.String("module", "", "module number, slug or label")
	fileArg := fs.String("file", "", "path to a .docx or .txt submission")
	_ = fs.Parse(os.Args[1:])

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

	fb, rubrics, err := app.Requester(cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "feedback", zap.Error(err))
	}
	g := &grader{fb: tuneForGrading(fb), rubrics: rubrics, log: logger, out: os.Stdout}
	if err := g.run(ctx, *moduleArg, *fileArg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// tuneForGrading pins the sampling settings used for one-off grading runs.
func tuneForGrading(fb *feedback.Requester) *feedback.Requester {
	t := gradeTemperature
	fb.TextTemperature = &t
	fb.TextMaxTokens = gradeMaxTokens
	return fb
}

func (g *grader) run(ctx context.Context, moduleArg, path string) error {
	if moduleArg == "" || path == "" {
		return errUsage
	}
	m, err := course.Parse(moduleArg)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var (
		text   string
		images []docx.Image
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		text = string(raw)
	case ".docx":
		doc, err := docx.OpenBytes(raw)
		if err != nil {
			return err
		}
		text = doc.Text()
		if m.AnalyzesFigures {
			images = doc.Images(func(name string, err error) {
				g.log.Warn(ctx, "skipping embedded image", zap.String("part", name), zap.Error(err))
			})
		}
	default:
		return fmt.Errorf("%s: want a .docx or .txt file", path)
	}

	rubricText, err := g.rubrics.LoadRubric(m)
	if err != nil {
		return err
	}
	if m.AnalyzesFigures && strings.EqualFold(filepath.Ext(path), ".docx") {
		fmt.Fprintf(g.out, "== Figure feedback ==\n%s\n\n", g.fb.RequestImageFeedback(ctx, images, m))
	}
	out, err := g.fb.RequestTextFeedback(ctx, rubricText, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out, "== Feedback: %s ==\n%s\n", m.Label, out)
	return nil
}

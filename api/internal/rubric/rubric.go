package rubric

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"peer-review/api/internal/course"
	"peer-review/api/internal/logging"
)

var ErrRubricNotFound = errors.New("rubric not found")

// DefaultImageRubric is used when neither a module nor a default image
// rubric file exists.
const DefaultImageRubric = `You are a peer reviewer for a university research course.
For each figure, comment on whether its type suits the data, whether axes, units and legends are labelled,
whether the caption explains what is shown, and whether it can be read without the main text.
Give specific, constructive suggestions. Do not assign a grade.`

type Loader struct {
	Dir string
	Log *logging.Logger
}

func New(dir string, log *logging.Logger) *Loader {
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{Dir: dir, Log: log}
}

// LoadRubric reads prompts/rubric_<n>.txt, then the per-section name
// rubric_<section>_<slug>.txt. Empty files count as missing.
func (l *Loader) LoadRubric(m course.Module) (string, error) {
	candidates := []string{
		l.path("rubric_" + m.RubricKey() + ".txt"),
		l.path(m.SectionRubricName()),
	}
	for _, p := range candidates {
		if s, ok := readNonEmpty(p); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w for module %q (looked in %s)", ErrRubricNotFound, m.Label, strings.Join(candidates, ", "))
}

// LoadImageRubric never fails: module file, then default file, then the
// built-in text.
func (l *Loader) LoadImageRubric(ctx context.Context, m course.Module) string {
	if s, ok := readNonEmpty(l.path("image_rubric_" + m.RubricKey() + ".txt")); ok {
		return s
	}
	if s, ok := readNonEmpty(l.path("image_rubric_default.txt")); ok {
		l.Log.Info(ctx, "image rubric: using default file", zap.String("module", m.Label))
		return s
	}
	l.Log.Warn(ctx, "image rubric: no file found, using built-in text", zap.String("module", m.Label), zap.String("dir", l.Dir))
	return DefaultImageRubric
}

func (l *Loader) path(name string) string {
	return filepath.Join(l.Dir, name)
}

func readNonEmpty(p string) (string, bool) {
	b, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	s := strings.TrimSpace(string(b))
	return s, s != ""
}

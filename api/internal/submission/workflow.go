// Package submission runs one peer-review attempt: validate, check the
// ledger, extract the document, request feedback and record the result.
package submission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"peer-review/api/internal/course"
	"peer-review/api/internal/docx"
	"peer-review/api/internal/feedback"
	"peer-review/api/internal/ledger"
	"peer-review/api/internal/logging"
	"peer-review/api/internal/rubric"
)

type State string

const (
	Idle                    State = "idle"
	Validating              State = "validating"
	CheckingLedger          State = "checking_ledger"
	Extracting              State = "extracting"
	RequestingImageFeedback State = "requesting_image_feedback"
	RequestingTextFeedback  State = "requesting_text_feedback"
	Logging                 State = "logging"
	Displaying              State = "displaying"
	Blocked                 State = "blocked"
	Failed                  State = "failed"
)

var (
	ErrValidation    = errors.New("invalid submission")
	ErrDuplicate     = ledger.ErrDuplicate
	ErrInProgress    = errors.New("submission already in progress")
	ErrDocument      = errors.New("could not read document")
	ErrRubricMissing = rubric.ErrRubricNotFound
	ErrTextFeedback  = feedback.ErrTextFeedback
	ErrLedger        = errors.New("ledger unavailable")
)

type Input struct {
	Module   string `form:"module" validate:"required"`
	Group    string `form:"group" validate:"required,number"`
	Filename string `form:"filename"`
	Document []byte `form:"file" validate:"required,min=1"`
}

type Result struct {
	State          State          `json:"state"`
	Trail          []State        `json:"-"`
	Module         course.Module  `json:"module"`
	Group          string         `json:"group"`
	Feedback       string         `json:"feedback,omitempty"`
	FigureFeedback string         `json:"figure_feedback,omitempty"`
	Record         *ledger.Record `json:"record,omitempty"`
	LedgerWarning  string         `json:"ledger_warning,omitempty"`
}

func (r *Result) enter(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

type Workflow struct {
	Ledger   ledger.Store
	Rubrics  *rubric.Loader
	Feedback *feedback.Requester
	Log      *logging.Logger

	mu       sync.Mutex
	inFlight map[ledger.Key]struct{}
}

func New(store ledger.Store, rubrics *rubric.Loader, fb *feedback.Requester, log *logging.Logger) *Workflow {
	if log == nil {
		log = logging.Nop()
	}
	return &Workflow{
		Ledger:   store,
		Rubrics:  rubrics,
		Feedback: fb,
		Log:      log,
		inFlight: make(map[ledger.Key]struct{}),
	}
}

// Submit always returns a non-nil Result whose State tells where the
// attempt stopped. The ledger is only written after text feedback succeeded.
func (w *Workflow) Submit(ctx context.Context, in Input) (*Result, error) {
	in.Module = strings.TrimSpace(in.Module)
	in.Group = strings.TrimSpace(in.Group)

	res := &Result{Group: in.Group}
	res.enter(Idle)
	if err := in.check(); err != nil {
		return res, err
	}
	m, err := course.Parse(in.Module)
	if err != nil {
		return res, err
	}
	res.Module = m
	res.enter(Validating)

	key := ledger.Key{Module: m.Label, Group: in.Group}
	if !w.acquire(key) {
		res.enter(Blocked)
		return res, fmt.Errorf("%w for %s", ErrInProgress, key)
	}
	defer w.release(key)

	log := w.Log.With(zap.String("module", m.Label), zap.String("group", in.Group))

	res.enter(CheckingLedger)
	done, err := w.Ledger.HasSubmitted(ctx, in.Group, m.Label)
	if err != nil {
		log.Error(ctx, "ledger check failed", zap.Error(err))
		res.enter(Failed)
		return res, fmt.Errorf("%w: %w", ErrLedger, err)
	}
	if done {
		res.enter(Blocked)
		return res, fmt.Errorf("%w for %s", ErrDuplicate, key)
	}

	res.enter(Extracting)
	if ext := strings.ToLower(filepath.Ext(in.Filename)); in.Filename != "" && ext != ".docx" {
		res.enter(Failed)
		return res, fmt.Errorf("%w: %q is not a .docx file", ErrDocument, in.Filename)
	}
	doc, err := docx.OpenBytes(in.Document)
	if err != nil {
		log.Warn(ctx, "document unreadable", zap.String("filename", in.Filename), zap.Error(err))
		res.enter(Failed)
		return res, fmt.Errorf("%w: %w", ErrDocument, err)
	}
	var images []docx.Image
	if m.AnalyzesFigures {
		images = doc.Images(func(name string, err error) {
			log.Warn(ctx, "skipping embedded image", zap.String("part", name), zap.Error(err))
		})
	}

	rubricText, err := w.Rubrics.LoadRubric(m)
	if err != nil {
		log.Error(ctx, "rubric missing", zap.Error(err))
		res.enter(Failed)
		return res, err
	}

	if m.AnalyzesFigures {
		res.enter(RequestingImageFeedback)
		res.FigureFeedback = w.Feedback.RequestImageFeedback(ctx, images, m)
	}

	res.enter(RequestingTextFeedback)
	text, err := w.Feedback.RequestTextFeedback(ctx, rubricText, doc.Text())
	if err != nil {
		res.enter(Failed)
		return res, err
	}
	res.Feedback = text

	res.enter(Logging)
	rec, err := w.Ledger.Append(ctx, m.Label, in.Group, m.AnalyzesFigures && len(images) > 0)
	if err != nil {
		log.Error(ctx, "ledger append failed", zap.Error(err))
		res.LedgerWarning = "Feedback was generated but the submission could not be recorded: " + err.Error()
	} else {
		res.Record = &rec
		log.Info(ctx, "submission recorded", zap.Bool("included_figures", rec.IncludedFigures))
	}

	res.enter(Displaying)
	return res, nil
}

func (w *Workflow) acquire(k ledger.Key) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight == nil {
		w.inFlight = make(map[ledger.Key]struct{})
	}
	if _, busy := w.inFlight[k]; busy {
		return false
	}
	w.inFlight[k] = struct{}{}
	return true
}

func (w *Workflow) release(k ledger.Key) {
	w.mu.Lock()
	delete(w.inFlight, k)
	w.mu.Unlock()
}

// UserMessage is the text shown to the student for a failed attempt.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Please provide a module, a numeric group number and a .docx file (" + strings.TrimPrefix(verr.Error(), ErrValidation.Error()+": ") + ")."
	case errors.Is(err, course.ErrUnknownModule):
		return "Unknown module. Choose one of: " + moduleList() + "."
	case errors.Is(err, ErrInProgress):
		return "A submission for this module and group is already being reviewed. Please wait for it to finish."
	case errors.Is(err, ErrDuplicate):
		return "Group has already submitted for this module: " + strings.TrimPrefix(err.Error(), ErrDuplicate.Error()+" for ") + "."
	case errors.Is(err, ErrDocument):
		return "The uploaded file could not be read as a Word (.docx) document. Please check the file and try again."
	case errors.Is(err, ErrRubricMissing):
		return "No rubric is configured for this module. Please contact the course staff."
	case errors.Is(err, ErrTextFeedback):
		return "The feedback service failed, nothing was recorded and you can try again: " + strings.TrimPrefix(err.Error(), ErrTextFeedback.Error()+": ")
	case errors.Is(err, ErrLedger):
		return "The submission log could not be read. Please contact the course staff."
	default:
		return "Unexpected error: " + err.Error()
	}
}

func moduleList() string {
	mods := course.All()
	labels := make([]string, 0, len(mods))
	for _, m := range mods {
		labels = append(labels, m.Label)
	}
	return strings.Join(labels, ", ")
}

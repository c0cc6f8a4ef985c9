// Package handle exposes the submission workflow and the admin console over HTTP.
package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"peer-review/api/internal/admin"
	"peer-review/api/internal/course"
	"peer-review/api/internal/ledger"
	"peer-review/api/internal/logging"
	"peer-review/api/internal/middleware"
	"peer-review/api/internal/submission"
)

const DefaultMaxUploadBytes = 10 << 20

var ErrBadRequest = errors.New("bad request")

type Handle struct {
	workflow  *submission.Workflow
	console   *admin.Console
	maxUpload int64
	log       *logging.Logger
}

// New wires the handlers. console may be nil, in which case the admin
// routes are not mounted.
func New(wf *submission.Workflow, console *admin.Console, maxUpload int64, log *logging.Logger) *Handle {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Handle{workflow: wf, console: console, maxUpload: maxUpload, log: log}
}

func (h *Handle) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(h.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/modules", h.Modules)
		r.Post("/submissions", h.Submit)
		if h.console != nil {
			r.Route("/admin", h.adminRoutes)
		}
	})
	return r
}

func (h *Handle) Modules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, course.All())
}

func mapErr(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, submission.ErrValidation),
		errors.Is(err, course.ErrUnknownModule),
		errors.Is(err, ledger.ErrIndexOutOfRange),
		errors.Is(err, admin.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, submission.ErrInProgress),
		errors.Is(err, submission.ErrDuplicate),
		errors.Is(err, admin.ErrStaleCommand):
		return http.StatusConflict
	case errors.Is(err, submission.ErrDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, submission.ErrTextFeedback):
		return http.StatusBadGateway
	case errors.Is(err, admin.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, admin.ErrNotArmed):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

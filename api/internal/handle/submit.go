package handle

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"peer-review/api/internal/logging"
	"peer-review/api/internal/submission"
)

// Submit accepts multipart/form-data with module, group and a .docx file.
func (h *Handle) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.ContentLength > h.maxUpload {
		writeErrorJSON(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxUpload))
			return
		}
		writeErrorJSON(w, http.StatusBadRequest, "expected multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in := submission.Input{
		Module: r.FormValue("module"),
		Group:  r.FormValue("group"),
	}
	if f, fh, err := r.FormFile("file"); err == nil {
		in.Filename = fh.Filename
		in.Document, err = io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeErrorJSON(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	res, err := h.workflow.Submit(ctx, in)
	if err != nil {
		code := mapErr(err)
		if logger, ok := logging.GetFromContext(ctx); ok {
			logger.Info(ctx, "submission rejected",
				zap.String("state", string(res.State)),
				zap.Int("status", code),
				zap.Error(err))
		}
		writeErrorJSON(w, code, submission.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

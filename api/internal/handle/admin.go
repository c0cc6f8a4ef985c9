package handle

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"peer-review/api/internal/admin"
	"peer-review/api/internal/logging"
)

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handle) adminRoutes(r chi.Router) {
	r.Post("/login", h.AdminLogin)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/logout", h.AdminLogout)
		r.Get("/submissions", h.AdminList)
		r.Get("/stats", h.AdminStats)
		r.Get("/modules", h.AdminModules)
		r.Get("/export", h.AdminExport)
		r.Post("/commands", h.AdminArm)
		r.Post("/commands/{token}/confirm", h.AdminConfirm)
		r.Delete("/commands/{token}", h.AdminCancel)
	})
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return ""
}

func (h *Handle) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := h.console.Authorize(ctx, bearer(r)); err != nil {
			if logger, ok := logging.GetFromContext(ctx); ok {
				logger.Info(ctx, "admin request unauthorized", zap.String("path", r.URL.Path))
			}
			writeErrorJSON(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handle) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	token, err := h.console.Login(r.Context(), req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handle) AdminLogout(w http.ResponseWriter, r *http.Request) {
	h.console.Logout(r.Context(), bearer(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) AdminList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.console.List(r.Context(), r.URL.Query().Get("module"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handle) AdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.console.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// AdminModules lists the module labels that have at least one record.
func (h *Handle) AdminModules(w http.ResponseWriter, r *http.Request) {
	mods, err := h.console.Modules(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mods)
}

func (h *Handle) AdminExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.console.Export(r.Context(), &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="submission_log.csv"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handle) AdminArm(w http.ResponseWriter, r *http.Request) {
	var cmd admin.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	p, err := h.console.Arm(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (h *Handle) AdminConfirm(w http.ResponseWriter, r *http.Request) {
	out, err := h.console.Confirm(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handle) AdminCancel(w http.ResponseWriter, r *http.Request) {
	h.console.Cancel(r.Context(), chi.URLParam(r, "token"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := mapErr(err)
	if code >= http.StatusInternalServerError {
		if logger, ok := logging.GetFromContext(r.Context()); ok {
			logger.Error(r.Context(), "admin request failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
	}
	writeErrorJSON(w, code, err.Error())
}

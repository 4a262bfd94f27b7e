package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/coursecms/internal/document"
	appI18n "github.com/pavelanni/coursecms/internal/i18n"
	"github.com/pavelanni/coursecms/internal/store"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodySize)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body into dst and runs struct validation on it.
// It writes the error response itself and reports whether the caller
// should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, appI18n.T(r.Context(), "BodyTooLarge"))
			return false
		}
		slog.Debug("decode request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidJSON"))
		return false
	}
	return h.check(w, r, dst)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		h.serverError(w, r, err)
		return false
	}
	resp := errorResponse{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg := appI18n.Td(r.Context(), "ValidationFailed", map[string]any{
			"Field": fe.Field(),
			"Rule":  fe.Tag(),
		})
		if resp.Error == "" {
			resp.Error = msg
		}
		resp.Fields[fe.Field()] = msg
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return false
}

// storeError maps store errors to responses. notFoundID is the message used
// when the requested row does not exist.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error, notFoundID string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, appI18n.T(ctx, notFoundID))
	case errors.Is(err, store.ErrInvalidReference):
		slog.Debug("invalid reference", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "InvalidReference"))
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, appI18n.T(ctx, "Conflict"))
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handler) documentError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	path := ""
	var be *document.BlockError
	if errors.As(err, &be) {
		path = be.Path
	}
	data := map[string]any{"Path": path}

	var msg string
	switch {
	case errors.Is(err, document.ErrMissingID):
		msg = appI18n.Td(ctx, "MissingBlockID", data)
	case errors.Is(err, document.ErrDuplicateID):
		msg = appI18n.Td(ctx, "DuplicateBlockID", data)
	case errors.Is(err, document.ErrMalformedPrivateSpec):
		msg = appI18n.Td(ctx, "MalformedPrivateSpec", data)
	case errors.Is(err, document.ErrInvalidAttributes):
		msg = appI18n.Td(ctx, "InvalidAttributes", data)
	default:
		h.serverError(w, r, err)
		return
	}
	slog.Info("rejected page document", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadRequest, msg)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "InternalError"))
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/screen"
	"github.com/codecheckerai/analysis-console/internal/services"
)

// Console is the service surface the HTTP layer drives.
type Console interface {
	Catalogue() []screen.Entry
	Mount(name string) (string, screen.Binding, error)
	View(id string) (screen.View, error)
	Submit(id string, in screen.Input) (screen.View, error)
	Unmount(id string) error
}

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

// Handler serves the console REST endpoints.
type Handler struct {
	console        Console
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewHandler constructs the REST handler set.
func NewHandler(console Console, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{console: console, logger: logger, maxUploadBytes: maxUploadBytes}
}

type mountResponse struct {
	ID   string      `json:"id"`
	View screen.View `json:"view"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// badRequestError marks client mistakes that map to 400.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &badRequestError{msg: msg, err: err}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (h *Handler) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.writeError(w, r, err)
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *badRequestError
	switch {
	case errors.Is(err, services.ErrUnknownScreen), errors.Is(err, services.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &bad):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: bad.msg})
	default:
		h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// Healthz answers liveness checks.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Screens lists the mountable screens.
func (h *Handler) Screens(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, h.console.Catalogue())
	return nil
}

// Mount handles POST /api/screens/{screen}/sessions.
func (h *Handler) Mount(w http.ResponseWriter, r *http.Request) error {
	id, b, err := h.console.Mount(chi.URLParam(r, "screen"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, mountResponse{ID: id, View: b.View()})
	return nil
}

// Get handles GET /api/sessions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	v, err := h.console.View(chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, v)
	return nil
}

// Submit handles POST /api/sessions/{id}/submit. Code and repository input
// arrive as JSON; datasets arrive as a multipart form with a "file" field.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) error {
	in, err := h.readInput(w, r)
	if err != nil {
		return err
	}
	v, err := h.console.Submit(chi.URLParam(r, "id"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, v)
	return nil
}

// Unmount handles DELETE /api/sessions/{id}.
func (h *Handler) Unmount(w http.ResponseWriter, r *http.Request) error {
	if err := h.console.Unmount(chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) readInput(w http.ResponseWriter, r *http.Request) (screen.Input, error) {
	var in screen.Input
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
		if err := r.ParseMultipartForm(multipartOverhead); err != nil {
			return in, badRequest("invalid multipart form", err)
		}
		in.Code = r.FormValue("code")
		in.RepositoryURL = r.FormValue("repo_url")

		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil
		}
		if err != nil {
			return in, badRequest("invalid file field", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return in, badRequest("read uploaded file", err)
		}
		in.File = &models.Upload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
		return in, nil
	}

	if r.Body == nil {
		return in, badRequest("request body required", nil)
	}
	r.Body = http.MaxBytesReader(w, r.Body, multipartOverhead)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return in, badRequest("request body required", nil)
		}
		return in, badRequest("invalid JSON body", err)
	}
	in.RepositoryURL = strings.TrimSpace(in.RepositoryURL)
	return in, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

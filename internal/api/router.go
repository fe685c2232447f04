package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configure the console HTTP surface.
type RouterOptions struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewRouter wires the REST and WebSocket endpoints.
func NewRouter(console Console, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(console, logger, opts.MaxUploadBytes)
	ws := NewWSHandler(console, logger, opts.AllowedOrigins)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(rt chi.Router) {
		rt.Get("/screens", h.wrap(h.Screens))
		rt.Post("/screens/{screen}/sessions", h.wrap(h.Mount))
		rt.Get("/screens/{screen}/ws", ws.Serve)

		rt.Get("/sessions/{id}", h.wrap(h.Get))
		rt.Post("/sessions/{id}/submit", h.wrap(h.Submit))
		rt.Delete("/sessions/{id}", h.wrap(h.Unmount))
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"stockgraphv1/internal/logger"
)

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Tracing tags every request with a trace ID, honoring an incoming
// X-Trace-ID header, and logs method, path, status and duration.
func Tracing(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = logger.NewTraceID()
			}
			ctx := logger.WithTraceID(r.Context(), traceID)
			w.Header().Set("X-Trace-ID", traceID)

			wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(wrapper, r.WithContext(ctx))

			log.Info("request",
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapper.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// NewRouter builds the full HTTP handler: routes, tracing and CORS.
func NewRouter(h *Handler, log *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(Tracing(log))
	h.RegisterRoutes(r)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"X-Trace-ID", "Content-Type"},
	}).Handler(r)
}

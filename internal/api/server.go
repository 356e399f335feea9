// Package api exposes the analysis service over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/roadcheck/internal/analysis"
	"github.com/sells-group/roadcheck/internal/jobs"
	"github.com/sells-group/roadcheck/internal/monitoring"
)

// DefaultMaxUploadBytes caps a GPX upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 20 << 20

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Server wires HTTP handlers to the job tracker and analyzer.
type Server struct {
	tracker  *jobs.Tracker
	analyzer *analysis.Analyzer
	opts     Options
}

// NewServer creates a Server.
func NewServer(tracker *jobs.Tracker, analyzer *analysis.Analyzer, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{
		tracker:  tracker,
		analyzer: analyzer,
		opts:     opts,
	}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", monitoring.Handler())

	r.Route("/analyze", func(r chi.Router) {
		r.Post("/", s.handleAnalyze)
		r.Get("/{id}/status", s.handleStatus)
		r.Get("/{id}/findings.geojson", s.handleFindings)
	})

	return r
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if lrw.statusCode >= http.StatusInternalServerError {
			zap.L().Error("api: request", fields...)
			return
		}
		zap.L().Debug("api: request", fields...)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

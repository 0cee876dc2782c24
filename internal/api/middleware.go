package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/flowforge/dagflow/internal/metrics"
)

// CORSMiddleware adds CORS headers to responses.
func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range h.config.CORSOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(h.config.CORSOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", h.config.CORSOrigins[0])
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Last-Event-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs request details with request ID and metrics.
func (h *Handlers) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		if !strings.HasPrefix(r.URL.Path, "/health") && r.URL.Path != "/metrics" {
			metricPath := normalizePath(r.URL.Path)
			statusStr := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, metricPath, statusStr).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, metricPath).Observe(duration.Seconds())
		}

		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
			return
		}

		logAttrs := []any{
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.statusCode),
			slog.Duration("duration", duration),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
		}
		// mux populates route vars on the request after the router has
		// matched it, which has already happened by the time this
		// deferred logging runs — the {id} in /workflows/{id} or
		// /runs/{id} is a workflow or execution id worth correlating
		// request logs by.
		if id := mux.Vars(r)["id"]; id != "" {
			logAttrs = append(logAttrs, slog.String("resource_id", id))
		}
		h.logger.Info("request", logAttrs...)
	})
}

// normalizePath collapses this engine's two id-bearing route families —
// /api/v1/workflows/{id}... and /api/v1/runs/{id}... — into fixed
// metric buckets so workflow and execution cardinality never leaks into
// Prometheus label values. Falls back to the raw path for anything that
// doesn't match a known route shape (health/metrics are filtered out by
// the caller before this is reached).
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/workflows/") && strings.HasSuffix(path, "/runs"):
		return "/api/v1/workflows/{workflowId}/runs"
	case strings.HasPrefix(path, "/api/v1/workflows/") && strings.HasSuffix(path, "/history"):
		return "/api/v1/workflows/{workflowId}/history"
	case strings.HasPrefix(path, "/api/v1/workflows/"):
		return "/api/v1/workflows/{workflowId}"
	case strings.HasPrefix(path, "/api/v1/runs/") && strings.HasSuffix(path, "/events"):
		return "/api/v1/runs/{executionId}/events"
	case strings.HasPrefix(path, "/api/v1/runs/") && strings.HasSuffix(path, "/cancel"):
		return "/api/v1/runs/{executionId}/cancel"
	case strings.HasPrefix(path, "/api/v1/runs/"):
		return "/api/v1/runs/{executionId}"
	default:
		return path
	}
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func (h *Handlers) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

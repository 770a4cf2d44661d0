package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/navikt/meetrooms/internal/utils"
)

// HTTPProtocolMiddleware prevents HTTP/3 QUIC protocol issues in cloud environments
// by telling browsers not to attempt HTTP/3, and keeps SSE connections on HTTP/1.1
func HTTPProtocolMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", "clear")

		if strings.HasPrefix(r.URL.Path, "/events") {
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Force-HTTP1", "true")
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE streaming working through the wrapper
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLogger logs every request and turns handler panics into 500s
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if p := recover(); p != nil {
					log.Error("Handler panicked", "path", utils.SanitizeLogString(r.URL.Path), "panic", p, "stack", string(debug.Stack()))
					http.Error(rec, "Internal server error", http.StatusInternalServerError)
				}
				if strings.HasPrefix(r.URL.Path, "/health") {
					return
				}
				log.Debug("Handled request",
					"method", r.Method,
					"path", utils.SanitizeLogString(r.URL.Path),
					"status", rec.status,
					"duration", time.Since(start))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// WrapMuxWithMiddleware wraps an HTTP mux with the protocol and logging middleware
func WrapMuxWithMiddleware(mux *http.ServeMux, log *slog.Logger) http.Handler {
	return HTTPProtocolMiddleware(RequestLogger(log)(mux))
}

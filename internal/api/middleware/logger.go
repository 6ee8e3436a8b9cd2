package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"
)

// Logger returns middleware writing one structured line per request: method,
// path, status, duration and the request ID set by chi's RequestID. Server
// errors log at error level, client errors at warn, the rest at info.
func Logger(logger *log.Logger) func(http.Handler) http.Handler {
	// Strip CR/LF from user-supplied values before logging.
	sanitize := strings.NewReplacer("\n", "", "\r", "").Replace

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			var entry *log.Entry
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				entry = logger.Error()
			case wrapped.statusCode >= http.StatusBadRequest:
				entry = logger.Warn()
			default:
				entry = logger.Info()
			}
			entry.
				Str("method", sanitize(r.Method)).
				Str("path", sanitize(r.URL.Path)).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

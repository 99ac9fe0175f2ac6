package web

import (
	"net/http"
	"time"

	"github.com/koopa0/websearch-mcp/internal/log"
)

// loggingWriter wraps http.ResponseWriter to capture metrics (status, size).
// It implements Flusher for SSE streaming support and Unwrap for ResponseController.
type loggingWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

// WriteHeader captures the status code.
func (w *loggingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and defaults status to 200 if not set.
func (w *loggingWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher for SSE streaming support.
// This is critical for /sse to work through the logging middleware.
func (w *loggingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter.
// This supports http.ResponseController for optional interface access.
func (w *loggingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// loggingMiddleware logs request details including latency, status, and
// response size.
func loggingMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapper := &loggingWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapper, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapper.statusCode,
				"bytes", wrapper.bytesWritten,
				"duration", time.Since(start),
				"ip", r.RemoteAddr,
			)
		})
	}
}

// recoveryMiddleware recovers from panics to prevent server crashes.
// It checks if headers have been sent before attempting to write an
// error response; on a live SSE stream it can only log.
func recoveryMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapper := &loggingWriter{
				ResponseWriter: w,
				statusCode:     0, // 0 indicates headers not yet sent
			}

			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"headers_sent", wrapper.statusCode != 0,
					)

					if wrapper.statusCode == 0 {
						http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
				}
			}()
			next.ServeHTTP(wrapper, r)
		})
	}
}

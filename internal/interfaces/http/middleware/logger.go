package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/application/usecase"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// AccessLog captures one record per request and hands it to the
// recorder. When logToStdout is set every request is also written to
// the process log.
func AccessLog(recorder *usecase.AccessRecorder, logToStdout bool, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			record := port.AccessRecord{
				RequestID:  RequestIDFromContext(r.Context()),
				Method:     r.Method,
				Path:       r.URL.Path,
				Query:      r.URL.RawQuery,
				Status:     wrapped.statusCode,
				BytesSent:  wrapped.bytesWritten,
				Duration:   duration,
				RemoteAddr: r.RemoteAddr,
				Referer:    r.Referer(),
				UserAgent:  r.UserAgent(),
				Protocol:   r.Proto,
				OccurredAt: start.UTC(),
			}
			recorder.Record(record)

			if logToStdout {
				log.Info("HTTP Request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", wrapped.statusCode,
					"bytes", wrapped.bytesWritten,
					"duration_ms", duration.Milliseconds(),
					"remote_addr", r.RemoteAddr,
					"request_id", record.RequestID,
				)
			}
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytesWritten += int64(n)
	return n, err
}

// Hijack keeps WebSocket upgrades working through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/google-auth-api/internal/logger"
	"github.com/benvon/google-auth-api/internal/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// probePaths are polled by orchestrators and logged at debug level only
var probePaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Logging logs one http_request entry per request. Level follows the
// status: 5xx error, 4xx warn, otherwise info.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if ce := logger.Check(requestLevel(r.URL.Path, wrapped.statusCode), "http_request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.Int("status_code", wrapped.statusCode),
					zap.Int("response_bytes", wrapped.bytes),
					zap.Int64("duration_ms", time.Since(start).Milliseconds()),
					zap.String("request_id", request.RequestID(r.Context())),
				)
			}
		})
	}
}

func requestLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case probePaths[path]:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

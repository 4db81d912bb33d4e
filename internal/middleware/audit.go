package middleware

import (
	"net/http"
	"strings"

	logpkg "github.com/benvon/google-auth-api/internal/logger"
	"github.com/benvon/google-auth-api/internal/request"
	"go.uber.org/zap"
)

// Audit logs authentication failures. Rejected credentials answer 400 on
// /auth/ routes, so those count alongside 401 and 403.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			event := auditEvent(r.URL.Path, wrapped.statusCode)
			if event == "" {
				return
			}
			logger.Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.String("request_id", request.RequestID(r.Context())),
			)
		})
	}
}

func auditEvent(path string, status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "security_event"
	case !isCredentialPath(path):
		return ""
	case status == http.StatusBadRequest:
		return "credential_rejected"
	case status == http.StatusConflict:
		return "account_conflict"
	default:
		return ""
	}
}

func isCredentialPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

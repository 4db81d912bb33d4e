package middleware

import (
	"net/http"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/benvon/google-auth-api/internal/request"
	"go.uber.org/zap"
)

// Authenticator verifies a session credential
type Authenticator interface {
	Authenticate(token string) (*models.SessionClaims, error)
}

// CredentialExtractor finds the session credential on a request
type CredentialExtractor interface {
	Extract(r *http.Request) (string, bool)
}

// RequireSession rejects requests without a valid session credential and
// stores the verified claims in the request context.
// Missing credential: 401. Malformed or expired: 400.
func RequireSession(auth Authenticator, extractor CredentialExtractor, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractor.Extract(r)
			if !ok {
				writeError(w, r, apperrors.ErrUnauthorized, logger)
				return
			}

			claims, err := auth.Authenticate(token)
			if err != nil {
				logger.Debug("session_rejected", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, r, err, logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithClaims(r.Context(), claims)))
		})
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benvon/google-auth-api/internal/apperrors"
	logpkg "github.com/benvon/google-auth-api/internal/logger"
	"go.uber.org/zap"
)

// maxErrorMessageLength bounds messages echoed to clients
const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	return logpkg.SanitizeString(message, maxErrorMessageLength)
}

// respondJSONError sends a flat {error, message} body with a sanitized message
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	response := map[string]string{"error": errorType}
	if message != "" {
		response["message"] = sanitizeErrorMessage(message)
	}
	respondJSON(w, status, response)
}

// respondError classifies err and renders it. Only verification failures
// echo their detail; everything else gets a fixed message.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	c := apperrors.Classify(err)

	var message string
	switch {
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		message = "Identity provider or user store did not respond in time"
	case errors.Is(err, apperrors.ErrBadRequest), errors.Is(err, apperrors.ErrVerificationFailed):
		message = err.Error()
	case errors.Is(err, apperrors.ErrInvalidCredential):
		message = "Session credential is invalid or expired"
	case errors.Is(err, apperrors.ErrConflict):
		message = "Email address is already registered to another account"
	case c.Status == http.StatusInternalServerError:
		message = "An unexpected error occurred"
	}

	if c.Status >= http.StatusInternalServerError {
		logger.Error("request_failed",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.Int("status_code", c.Status),
			zap.Error(err),
		)
	}

	respondJSONError(w, c.Status, c.Title, message)
}

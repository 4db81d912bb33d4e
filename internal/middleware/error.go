package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"go.uber.org/zap"
)

// ErrorResponse is the flat error body every endpoint returns
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ErrorHandler creates error handling middleware
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					// Log panic details server-side but don't expose to client
					logger.Error("panic_recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)
					respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeError renders err through the shared classification table
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	c := apperrors.Classify(err)
	message := ""
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		message = "No session credential presented"
	case errors.Is(err, apperrors.ErrInvalidCredential):
		message = "Session credential is invalid or expired"
	}
	respondErrorJSON(w, r, c.Status, c.Title, message, logger)
}

// respondErrorJSON sends an error JSON response. logger may be nil.
func respondErrorJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := ErrorResponse{
		Error:   errorType,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil && logger != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
			zap.String("path", r.URL.Path),
		)
	}
}

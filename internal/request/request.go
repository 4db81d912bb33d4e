package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/google-auth-api/internal/models"
)

type contextKey string

const (
	claimsContextKey    contextKey = "session_claims"
	requestIDContextKey contextKey = "request_id"
)

// ClaimsContextKey returns the context key used for session claims. Exposed for tests that inject non-claims values.
func ClaimsContextKey() contextKey { return claimsContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithClaims returns a context carrying verified session claims.
func WithClaims(ctx context.Context, claims *models.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the session claims from the request context, or nil if missing or wrong type.
func ClaimsFromContext(r *http.Request) *models.SessionClaims {
	c, _ := r.Context().Value(claimsContextKey).(*models.SessionClaims)
	return c
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestID returns the request id from ctx, or "" when none was assigned.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

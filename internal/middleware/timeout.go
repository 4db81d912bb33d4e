package middleware

import (
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout bounds a whole request, upstream calls included
	DefaultRequestTimeout = 30 * time.Second

	timeoutBody = `{"error":"Service unavailable","message":"Request timed out"}`
)

// Timeout answers 503 with a JSON body when a handler runs past timeout.
// The request context carries the same deadline.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		inner := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inner.ServeHTTP(&timeoutWriter{ResponseWriter: w}, r)
		})
	}
}

// timeoutWriter labels the TimeoutHandler body, which net/http would
// otherwise sniff as text/plain.
type timeoutWriter struct {
	http.ResponseWriter
}

func (tw *timeoutWriter) WriteHeader(code int) {
	if code == http.StatusServiceUnavailable && tw.Header().Get("Content-Type") == "" {
		tw.Header().Set("Content-Type", "application/json")
	}
	tw.ResponseWriter.WriteHeader(code)
}

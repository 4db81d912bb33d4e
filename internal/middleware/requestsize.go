package middleware

import (
	"fmt"
	"net/http"
)

// DefaultMaxRequestSize is the default maximum request body size. Login
// bodies carry one ID token, which stays well under this.
const DefaultMaxRequestSize int64 = 64 << 10

// MaxRequestSize rejects declared oversize bodies up front and caps the rest
// with http.MaxBytesReader
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	tooLarge := fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondErrorJSON(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", tooLarge, nil)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"errors"
	"mime"
	"net/http"
)

var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// ContentType requires application/json on requests that carry a body.
// Bodyless POSTs such as logout pass through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !bodyMethods[r.Method] || !hasBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Content-Type")
		if header == "" {
			respondErrorJSON(w, r, http.StatusBadRequest, "Bad request", "Content-Type header is required", nil)
			return
		}

		mediaType, _, err := mime.ParseMediaType(header)
		if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
			respondErrorJSON(w, r, http.StatusBadRequest, "Bad request", "Content-Type header is malformed", nil)
			return
		}
		if mediaType != "application/json" {
			respondErrorJSON(w, r, http.StatusUnsupportedMediaType, "Unsupported media type", "Content-Type must be application/json", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func hasBody(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	return r.ContentLength < 0 && r.Body != nil && r.Body != http.NoBody
}

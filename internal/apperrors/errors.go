// Package apperrors defines the closed set of errors that cross component
// boundaries. Components wrap these with fmt.Errorf("...: %w", err) and
// handlers classify them with errors.Is.
package apperrors

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrBadRequest indicates required input was missing or malformed
	ErrBadRequest = errors.New("bad request")
	// ErrVerificationFailed indicates the identity provider rejected the token
	ErrVerificationFailed = errors.New("identity token verification failed")
	// ErrUnauthorized indicates no session credential was presented
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredential covers malformed, tampered and expired session credentials alike
	ErrInvalidCredential = errors.New("invalid session credential")
	// ErrUserNotFound indicates the directory has no matching record
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict indicates a unique constraint rejected a create. A conflict on
	// the subject id is recovered locally by re-fetching; one on the email alone
	// reaches the client as 409.
	ErrConflict = errors.New("user already exists")
	// ErrUpstreamUnavailable indicates the store or the identity provider did not answer in time
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Classification is the client-facing rendering of an error.
type Classification struct {
	Status int
	Title  string
}

// Classify maps an error to its HTTP status and public title.
// Unknown errors are treated as internal failures.
func Classify(err error) Classification {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		return Classification{Status: http.StatusServiceUnavailable, Title: "Service unavailable"}
	case errors.Is(err, ErrBadRequest):
		return Classification{Status: http.StatusBadRequest, Title: "Bad request"}
	case errors.Is(err, ErrVerificationFailed), errors.Is(err, ErrInvalidCredential):
		return Classification{Status: http.StatusBadRequest, Title: "Invalid token"}
	case errors.Is(err, ErrUnauthorized):
		return Classification{Status: http.StatusUnauthorized, Title: "Unauthorized"}
	case errors.Is(err, ErrUserNotFound):
		return Classification{Status: http.StatusNotFound, Title: "User not found"}
	case errors.Is(err, ErrConflict):
		return Classification{Status: http.StatusConflict, Title: "Conflict"}
	default:
		return Classification{Status: http.StatusInternalServerError, Title: "Internal Server Error"}
	}
}

// Upstream wraps err as ErrUpstreamUnavailable when it stems from a deadline
// or cancellation, and returns it unchanged otherwise.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrUpstreamUnavailable, err)
	}
	return err
}

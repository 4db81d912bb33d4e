// Package googletest provides an in-process IdentityVerifier for tests.
package googletest

import (
	"context"
	"fmt"
	"sync"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/benvon/google-auth-api/internal/services/google"
)

var _ google.IdentityVerifier = (*Verifier)(nil)

// Verifier accepts only the tokens registered with Add
type Verifier struct {
	mu     sync.RWMutex
	tokens map[string]models.GoogleClaims
	err    error
	calls  int
}

// NewVerifier returns an empty Verifier
func NewVerifier() *Verifier {
	return &Verifier{tokens: make(map[string]models.GoogleClaims)}
}

// Add registers token as a valid identity token carrying claims
func (v *Verifier) Add(token string, claims models.GoogleClaims) *Verifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = claims
	return v
}

// FailWith makes every subsequent Verify return err
func (v *Verifier) FailWith(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
}

// Calls reports how many times Verify ran
func (v *Verifier) Calls() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.calls
}

// Verify implements google.IdentityVerifier
func (v *Verifier) Verify(ctx context.Context, token string) (*models.GoogleClaims, error) {
	v.mu.Lock()
	v.calls++
	failure := v.err
	claims, ok := v.tokens[token]
	v.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Upstream(err)
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", apperrors.ErrVerificationFailed)
	}
	return &claims, nil
}

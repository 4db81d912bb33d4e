// Package session mints and verifies the signed credentials handed to clients
// after a successful Google sign-in, and moves them over cookies or headers.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// DefaultIssuer is the iss claim stamped on every credential
	DefaultIssuer = "google-auth-api"

	claimUserID  = "id"
	claimEmail   = "email"
	claimName    = "name"
	claimPicture = "picture"
)

// Issuer signs session credentials with a process-wide HMAC secret
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures an Issuer
type Option func(*Issuer)

// WithClock overrides the time source used for iat/exp and validation
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithIssuerName overrides the iss claim
func WithIssuerName(name string) Option {
	return func(i *Issuer) {
		i.issuer = name
	}
}

// NewIssuer creates a new session issuer. The secret is copied and never mutated.
func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session signing secret is empty")
	}
	i := &Issuer{
		secret: append([]byte(nil), secret...),
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue mints a credential embedding claims that expires ttl from now
func (i *Issuer) Issue(claims models.SessionClaims, ttl time.Duration) (*models.SessionToken, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	if claims.UserID == "" {
		return nil, errors.New("session claims missing user id")
	}

	issuedAt := i.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	tok, err := jwt.NewBuilder().
		Issuer(i.issuer).
		IssuedAt(issuedAt).
		Expiration(expiresAt).
		Claim(claimUserID, claims.UserID).
		Claim(claimEmail, claims.Email).
		Claim(claimName, claims.Name).
		Claim(claimPicture, claims.Picture).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build session token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &models.SessionToken{
		Value:     string(signed),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the signature, then expiry, and decodes the claims.
// Every failure is reported as apperrors.ErrInvalidCredential.
func (i *Issuer) Verify(token string) (*models.SessionClaims, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidCredential
	}

	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, i.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(i.now)),
		jwt.WithIssuer(i.issuer),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidCredential, err)
	}

	claims := &models.SessionClaims{
		UserID:  stringClaim(tok, claimUserID),
		Email:   stringClaim(tok, claimEmail),
		Name:    stringClaim(tok, claimName),
		Picture: stringClaim(tok, claimPicture),
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", apperrors.ErrInvalidCredential)
	}
	return claims, nil
}

func stringClaim(tok jwt.Token, key string) string {
	v, ok := tok.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

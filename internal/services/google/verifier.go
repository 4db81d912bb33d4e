package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Issuers lists the iss values Google stamps on ID tokens
var Issuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IdentityVerifier validates an opaque identity token and returns its verified claims.
// Rejected tokens yield apperrors.ErrVerificationFailed; an unreachable
// provider yields apperrors.ErrUpstreamUnavailable.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*models.GoogleClaims, error)
}

var _ IdentityVerifier = (*IDTokenVerifier)(nil)

// IDTokenVerifier verifies Google ID tokens against Google's published keys
type IDTokenVerifier struct {
	jwks     *JWKSManager
	jwksURL  string
	audience string
	issuers  []string
	skew     time.Duration
	now      func() time.Time
}

// VerifierOption configures an IDTokenVerifier
type VerifierOption func(*IDTokenVerifier)

// WithJWKSURL points the verifier at a different key set
func WithJWKSURL(url string) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.jwksURL = url
	}
}

// WithVerifierClock sets the clock used for exp, iat and nbf checks
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.now = now
	}
}

// WithAcceptableSkew tolerates clock drift between Google and this host
func WithAcceptableSkew(d time.Duration) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.skew = d
	}
}

// NewIDTokenVerifier creates a verifier that accepts tokens minted for clientID
func NewIDTokenVerifier(jwks *JWKSManager, clientID string, opts ...VerifierOption) (*IDTokenVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	if jwks == nil {
		jwks = NewJWKSManager()
	}
	v := &IDTokenVerifier{
		jwks:     jwks,
		jwksURL:  DefaultJWKSURL,
		audience: clientID,
		issuers:  Issuers,
		skew:     30 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the token signature, audience, issuer and lifetime and
// extracts the identity claims.
func (v *IDTokenVerifier) Verify(ctx context.Context, tokenString string) (*models.GoogleClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is empty", apperrors.ErrVerificationFailed)
	}

	kid, err := keyID(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrVerificationFailed, err)
	}

	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, upstreamErr(err)
	}
	if _, found := keys.LookupKeyID(kid); !found {
		// Google rotates keys; an unknown kid may be newer than the cache
		keys, err = v.jwks.Refresh(ctx, v.jwksURL)
		if err != nil {
			return nil, upstreamErr(err)
		}
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithAudience(v.audience),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrVerificationFailed, err)
	}

	if !v.trustedIssuer(token.Issuer()) {
		return nil, fmt.Errorf("%w: untrusted issuer %q", apperrors.ErrVerificationFailed, token.Issuer())
	}

	claims := &models.GoogleClaims{
		Sub:     token.Subject(),
		Iss:     token.Issuer(),
		Aud:     v.audience,
		Email:   stringClaim(token, "email"),
		Name:    stringClaim(token, "name"),
		Picture: stringClaim(token, "picture"),
	}
	if !token.Expiration().IsZero() {
		claims.Exp = token.Expiration().Unix()
	}
	verified, present := boolClaim(token, "email_verified")
	claims.EmailVerified = verified

	if claims.Sub == "" {
		return nil, fmt.Errorf("%w: token missing subject", apperrors.ErrVerificationFailed)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token missing email", apperrors.ErrVerificationFailed)
	}
	if present && !verified {
		return nil, fmt.Errorf("%w: email not verified", apperrors.ErrVerificationFailed)
	}

	return claims, nil
}

func (v *IDTokenVerifier) trustedIssuer(iss string) bool {
	for _, trusted := range v.issuers {
		if iss == trusted {
			return true
		}
	}
	return false
}

// keyID reads the kid header without verifying the signature
func keyID(tokenString string) (string, error) {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil {
		return "", fmt.Errorf("malformed token: %w", err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", errors.New("token has no signature")
	}
	kid := sigs[0].ProtectedHeaders().KeyID()
	if kid == "" {
		return "", errors.New("token header missing kid")
	}
	return kid, nil
}

func upstreamErr(err error) error {
	if errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
}

func stringClaim(token jwt.Token, key string) string {
	v, ok := token.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// boolClaim accepts both JSON booleans and the "true"/"false" strings some
// older Google tokens carry.
func boolClaim(token jwt.Token, key string) (value, present bool) {
	v, ok := token.Get(key)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return b == "true", true
	default:
		return false, true
	}
}

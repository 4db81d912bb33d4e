package google

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testClientID = "test-client.apps.googleusercontent.com"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// signingKey is an RSA private key registered under kid
type signingKey struct {
	kid  string
	priv jwk.Key
	pub  jwk.Key
}

func newSigningKey(t *testing.T, kid string) *signingKey {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	priv, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("Failed to wrap RSA key: %v", err)
	}
	if err := priv.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("Failed to set kid: %v", err)
	}
	if err := priv.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("Failed to set alg: %v", err)
	}
	pub, err := jwk.PublicKeyOf(priv)
	if err != nil {
		t.Fatalf("Failed to derive public key: %v", err)
	}
	return &signingKey{kid: kid, priv: priv, pub: pub}
}

// sign mints an ID token shaped like Google's, letting mutate adjust claims
func (k *signingKey) sign(t *testing.T, mutate func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()

	b := jwt.NewBuilder().
		Issuer("https://accounts.google.com").
		Subject("g-123").
		Audience([]string{testClientID}).
		IssuedAt(testNow.Add(-time.Minute)).
		Expiration(testNow.Add(time.Hour)).
		Claim("email", "a@x.com").
		Claim("email_verified", true).
		Claim("name", "A").
		Claim("picture", "p.png")
	if mutate != nil {
		b = mutate(b)
	}
	tok, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build token: %v", err)
	}

	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.KeyIDKey, k.kid); err != nil {
		t.Fatalf("Failed to set kid header: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, k.priv, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return string(signed)
}

// jwksServer serves a mutable key set and counts fetches
type jwksServer struct {
	*httptest.Server
	mu      sync.Mutex
	keys    []*signingKey
	status  int
	fetches atomic.Int32
}

func newJWKSServer(t *testing.T, keys ...*signingKey) *jwksServer {
	t.Helper()

	s := &jwksServer{keys: keys, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}
		set := jwk.NewSet()
		for _, k := range s.keys {
			if err := set.AddKey(k.pub); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) setKeys(keys ...*signingKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

func (s *jwksServer) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func newTestVerifier(t *testing.T, server *jwksServer, jwksOpts ...JWKSOption) *IDTokenVerifier {
	t.Helper()

	manager := NewJWKSManager(append([]JWKSOption{WithHTTPClient(server.Client())}, jwksOpts...)...)
	v, err := NewIDTokenVerifier(manager, testClientID,
		WithJWKSURL(server.URL),
		WithVerifierClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("NewIDTokenVerifier returned error: %v", err)
	}
	return v
}

package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultJWKSURL publishes the keys Google signs ID tokens with
const DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

const (
	defaultCacheTTL        = time.Hour
	defaultRefreshInterval = time.Minute
	maxJWKSBodyBytes       = 1 << 20
)

// jwksCache holds one fetched key set
type jwksCache struct {
	keys      jwk.Set
	expires   time.Time
	fetchedAt time.Time
}

// JWKSManager fetches and caches JWKS documents per URL
type JWKSManager struct {
	cache           map[string]*jwksCache
	mu              sync.RWMutex
	ttl             time.Duration
	refreshInterval time.Duration
	client          *http.Client
	now             func() time.Time
}

// JWKSOption configures a JWKSManager
type JWKSOption func(*JWKSManager)

// WithHTTPClient replaces the client used to fetch key sets
func WithHTTPClient(c *http.Client) JWKSOption {
	return func(m *JWKSManager) {
		m.client = c
	}
}

// WithCacheTTL sets how long a key set is used when the response carries no max-age
func WithCacheTTL(ttl time.Duration) JWKSOption {
	return func(m *JWKSManager) {
		m.ttl = ttl
	}
}

// WithMinRefreshInterval bounds how often an unknown key id may force a refetch
func WithMinRefreshInterval(d time.Duration) JWKSOption {
	return func(m *JWKSManager) {
		m.refreshInterval = d
	}
}

// NewJWKSManager creates a new JWKS manager
func NewJWKSManager(opts ...JWKSOption) *JWKSManager {
	m := &JWKSManager{
		cache:           make(map[string]*jwksCache),
		ttl:             defaultCacheTTL,
		refreshInterval: defaultRefreshInterval,
		client:          &http.Client{Timeout: 10 * time.Second},
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetJWKS returns the key set for jwksURL, fetching it when the cached copy has expired
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	entry, exists := m.cache[jwksURL]
	m.mu.RUnlock()

	if exists && m.now().Before(entry.expires) {
		return entry.keys, nil
	}
	return m.refresh(ctx, jwksURL)
}

// Refresh refetches the key set unless it was fetched within the minimum
// refresh interval, in which case the cached set is returned.
func (m *JWKSManager) Refresh(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	entry, exists := m.cache[jwksURL]
	m.mu.RUnlock()

	if exists && m.now().Sub(entry.fetchedAt) < m.refreshInterval {
		return entry.keys, nil
	}
	return m.refresh(ctx, jwksURL)
}

func (m *JWKSManager) refresh(ctx context.Context, jwksURL string) (jwk.Set, error) {
	keys, maxAge, err := m.fetchJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	ttl := m.ttl
	if maxAge > 0 {
		ttl = maxAge
	}
	now := m.now()

	m.mu.Lock()
	m.cache[jwksURL] = &jwksCache{
		keys:      keys,
		expires:   now.Add(ttl),
		fetchedAt: now,
	}
	m.mu.Unlock()

	return keys, nil
}

func (m *JWKSManager) fetchJWKS(ctx context.Context, jwksURL string) (jwk.Set, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

// maxAge extracts the max-age directive from a Cache-Control header
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}

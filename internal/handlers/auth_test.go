package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/database"
	"github.com/benvon/google-auth-api/internal/middleware"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/benvon/google-auth-api/internal/services/auth"
	"github.com/benvon/google-auth-api/internal/services/google/googletest"
	"github.com/benvon/google-auth-api/internal/services/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const frontendURL = "http://localhost:3001"

var sampleClaims = models.GoogleClaims{
	Sub:           "g-123",
	Email:         "a@x.com",
	EmailVerified: true,
	Name:          "A",
	Picture:       "p.png",
}

type fakeOAuth struct {
	tokens map[string]string
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) ExchangeCode(_ context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: missing authorization code", apperrors.ErrBadRequest)
	}
	token, ok := f.tokens[code]
	if !ok {
		return "", fmt.Errorf("%w: code rejected", apperrors.ErrVerificationFailed)
	}
	return token, nil
}

type testServer struct {
	router    *mux.Router
	verifier  *googletest.Verifier
	directory *database.MemoryUserRepository
}

func newTestServer(t *testing.T, mode session.Mode, oauth OAuthClient) *testServer {
	t.Helper()

	issuer, err := session.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	verifier := googletest.NewVerifier().Add("google-token", sampleClaims)
	directory := database.NewMemoryUserRepository()
	svc := auth.NewService(verifier, directory, issuer, auth.Config{}, nil, nil)
	transport := session.NewTransport(mode, false)
	logger := zap.NewNop()

	h := NewAuthHandler(svc, transport, AuthHandlerConfig{OAuth: oauth, FrontendURL: frontendURL}, logger)
	r := mux.NewRouter()
	h.RegisterRoutes(r, middleware.RequireSession(svc, transport, logger))

	return &testServer{router: r, verifier: verifier, directory: directory}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) login(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"token":"google-token"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := s.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected login status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_HeaderMode(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, session.ModeHeader, nil)
	body := decodeBody(t, s.login(t))

	if body["message"] != "User authenticated" {
		t.Errorf("Expected message 'User authenticated', got %v", body["message"])
	}
	if token, _ := body["jwt_token"].(string); token == "" {
		t.Error("Expected jwt_token in header mode")
	}

	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("Expected user object, got %v", body["user"])
	}
	stored, err := s.directory.FindBySubjectID(context.Background(), "g-123")
	if err != nil {
		t.Fatalf("Expected record for g-123: %v", err)
	}
	if user["id"] != stored.ID {
		t.Errorf("Expected user id %s, got %v", stored.ID, user["id"])
	}
	if user["email"] != "a@x.com" || user["name"] != "A" || user["picture"] != "p.png" {
		t.Errorf("Unexpected user projection: %v", user)
	}
	for _, key := range []string{"_id", "google_id", "created_at"} {
		if _, present := user[key]; present {
			t.Errorf("Expected %s to be absent from the public user", key)
		}
	}
}

func TestLogin_CookieMode(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, session.ModeCookie, nil)
	rr := s.login(t)
	body := decodeBody(t, rr)

	if _, present := body["jwt_token"]; present {
		t.Error("Expected no jwt_token in cookie mode")
	}
	c := findCookie(rr, session.CookieName)
	if c == nil || c.Value == "" {
		t.Fatal("Expected token cookie")
	}
	if !c.HttpOnly || c.SameSite != http.SameSiteStrictMode {
		t.Errorf("Expected HttpOnly SameSite=Strict cookie, got %+v", c)
	}
	if c.MaxAge <= 0 || c.MaxAge > 3600 {
		t.Errorf("Expected Max-Age within the session ttl, got %d", c.MaxAge)
	}
}

func TestLogin_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		failWith   error
		wantStatus int
		wantError  string
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantError: "Bad request"},
		{name: "malformed json", body: `{"token":`, wantStatus: http.StatusBadRequest, wantError: "Bad request"},
		{name: "missing token", body: `{}`, wantStatus: http.StatusBadRequest, wantError: "Bad request"},
		{name: "empty token", body: `{"token":""}`, wantStatus: http.StatusBadRequest, wantError: "Bad request"},
		{name: "token with whitespace", body: `{"token":"a b"}`, wantStatus: http.StatusBadRequest, wantError: "Bad request"},
		{name: "unknown token", body: `{"token":"forged"}`, wantStatus: http.StatusBadRequest, wantError: "Invalid token"},
		{
			name:       "provider down",
			body:       `{"token":"google-token"}`,
			failWith:   fmt.Errorf("%w: fetching keys", apperrors.ErrUpstreamUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Service unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, session.ModeHeader, nil)
			if tt.failWith != nil {
				s.verifier.FailWith(tt.failWith)
			}

			req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := s.do(req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if got := decodeBody(t, rr)["error"]; got != tt.wantError {
				t.Errorf("Expected error %q, got %v", tt.wantError, got)
			}
			if s.directory.Count() != 0 {
				t.Errorf("Expected no user records, got %d", s.directory.Count())
			}
		})
	}
}

func TestLogin_BodyTooLarge(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, session.ModeHeader, nil)
	handler := middleware.MaxRequestSize(16)(s.router)

	req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"token":"`+strings.Repeat("a", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rr.Code)
	}
}

func TestProfile(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, session.ModeHeader, nil)
	token := decodeBody(t, s.login(t))["jwt_token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := s.do(req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	user, ok := decodeBody(t, rr)["user"].(map[string]any)
	if !ok || user["email"] != "a@x.com" {
		t.Errorf("Expected profile for a@x.com, got %v", user)
	}
}

func TestProfile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     func(token string) string
		deleteUser bool
		wantStatus int
		wantError  string
	}{
		{
			name:       "no credential",
			header:     func(string) string { return "" },
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name:       "malformed credential",
			header:     func(string) string { return "Bearer not-a-jwt" },
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid token",
		},
		{
			name:       "tampered credential",
			header:     func(token string) string { return "Bearer " + token + "x" },
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid token",
		},
		{
			name:       "deleted user",
			header:     func(token string) string { return "Bearer " + token },
			deleteUser: true,
			wantStatus: http.StatusNotFound,
			wantError:  "User not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, session.ModeHeader, nil)
			body := decodeBody(t, s.login(t))
			token := body["jwt_token"].(string)

			if tt.deleteUser {
				id := body["user"].(map[string]any)["id"].(string)
				if err := s.directory.Delete(context.Background(), id); err != nil {
					t.Fatalf("Delete returned error: %v", err)
				}
			}

			req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
			if h := tt.header(token); h != "" {
				req.Header.Set("Authorization", h)
			}
			rr := s.do(req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if got := decodeBody(t, rr)["error"]; got != tt.wantError {
				t.Errorf("Expected error %q, got %v", tt.wantError, got)
			}
		})
	}
}

func TestProfile_WithoutRequireSession(t *testing.T) {
	t.Parallel()

	h := NewAuthHandler(nil, session.NewTransport(session.ModeHeader, false), AuthHandlerConfig{}, zap.NewNop())
	rr := httptest.NewRecorder()
	h.Profile(rr, httptest.NewRequest(http.MethodGet, "/auth/profile", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without claims, got %d", rr.Code)
	}
}

func TestLogout_ClearsCookieButTokenStaysValid(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, session.ModeCookie, nil)
			issued := findCookie(s.login(t), session.CookieName)
			if issued == nil {
				t.Fatal("Expected token cookie from login")
			}

			req := httptest.NewRequest(method, "/auth/logout", nil)
			req.AddCookie(issued)
			rr := s.do(req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rr.Code)
			}
			if got := decodeBody(t, rr)["message"]; got != "Logged out" {
				t.Errorf("Expected message 'Logged out', got %v", got)
			}
			cleared := findCookie(rr, session.CookieName)
			if cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
				t.Fatalf("Expected an expired empty token cookie, got %+v", cleared)
			}
			if !cleared.HttpOnly || cleared.SameSite != http.SameSiteStrictMode || cleared.Path != issued.Path {
				t.Errorf("Expected cleared cookie attributes to match the issued cookie, got %+v", cleared)
			}

			// stateless logout: a copy of the old credential still works until it expires
			profile := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
			profile.AddCookie(issued)
			if rr := s.do(profile); rr.Code != http.StatusOK {
				t.Errorf("Expected old credential to still verify, got %d", rr.Code)
			}
		})
	}
}

func TestHelloWorld(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, session.ModeHeader, nil)
	rr := s.do(httptest.NewRequest(http.MethodGet, "/hello-world", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if got := decodeBody(t, rr)["message"]; got != "Hello, World!" {
		t.Errorf("Expected greeting, got %v", got)
	}
}

func TestGoogleLogin(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, session.ModeCookie, nil)
		for _, path := range []string{"/auth/google/login", "/auth/google/callback?state=x&code=y"} {
			if rr := s.do(httptest.NewRequest(http.MethodGet, path, nil)); rr.Code != http.StatusNotFound {
				t.Errorf("Expected 404 for %s, got %d", path, rr.Code)
			}
		}
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, session.ModeCookie, &fakeOAuth{})
		rr := s.do(httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

		if rr.Code != http.StatusFound {
			t.Fatalf("Expected status 302, got %d", rr.Code)
		}
		state := findCookie(rr, oauthStateCookie)
		if state == nil || state.Value == "" {
			t.Fatal("Expected oauth_state cookie")
		}
		if state.MaxAge != oauthStateMaxAge || !state.HttpOnly || state.SameSite != http.SameSiteLaxMode {
			t.Errorf("Unexpected state cookie attributes: %+v", state)
		}
		location, err := url.Parse(rr.Header().Get("Location"))
		if err != nil {
			t.Fatalf("Invalid Location header: %v", err)
		}
		if got := location.Query().Get("state"); got != state.Value {
			t.Errorf("Expected state %q in redirect, got %q", state.Value, got)
		}
	})
}

func TestGoogleCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		query       string
		stateCookie string
		wantStatus  int
		wantSession bool
	}{
		{name: "success", query: "state=abc&code=good", stateCookie: "abc", wantStatus: http.StatusFound, wantSession: true},
		{name: "missing state cookie", query: "state=abc&code=good", wantStatus: http.StatusBadRequest},
		{name: "state mismatch", query: "state=abc&code=good", stateCookie: "xyz", wantStatus: http.StatusBadRequest},
		{name: "consent denied", query: "state=abc&error=access_denied", stateCookie: "abc", wantStatus: http.StatusBadRequest},
		{name: "missing code", query: "state=abc", stateCookie: "abc", wantStatus: http.StatusBadRequest},
		{name: "rejected code", query: "state=abc&code=bad", stateCookie: "abc", wantStatus: http.StatusBadRequest},
		{name: "id token fails verification", query: "state=abc&code=forged", stateCookie: "abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, session.ModeCookie, &fakeOAuth{tokens: map[string]string{
				"good":   "google-token",
				"forged": "not-registered",
			}})

			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+tt.query, nil)
			if tt.stateCookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.stateCookie})
			}
			rr := s.do(req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}

			c := findCookie(rr, session.CookieName)
			if tt.wantSession {
				if c == nil || c.Value == "" {
					t.Fatal("Expected session cookie after callback")
				}
				if got := rr.Header().Get("Location"); got != frontendURL {
					t.Errorf("Expected redirect to %s, got %s", frontendURL, got)
				}
				if s.directory.Count() != 1 {
					t.Errorf("Expected one user record, got %d", s.directory.Count())
				}
			} else if c != nil {
				t.Errorf("Expected no session cookie, got %+v", c)
			}
		})
	}
}

type stalledOAuth struct{}

func (stalledOAuth) AuthCodeURL(state string) string { return "" }

func (stalledOAuth) ExchangeCode(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", fmt.Errorf("code exchange failed: %w", ctx.Err())
}

func TestGoogleCallback_ExchangeTimeout(t *testing.T) {
	t.Parallel()

	issuer, err := session.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	svc := auth.NewService(googletest.NewVerifier(), database.NewMemoryUserRepository(), issuer, auth.Config{}, nil, nil)
	h := NewAuthHandler(svc, session.NewTransport(session.ModeCookie, false), AuthHandlerConfig{
		OAuth:           stalledOAuth{},
		FrontendURL:     frontendURL,
		UpstreamTimeout: 20 * time.Millisecond,
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=abc&code=good", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "abc"})
	rr := httptest.NewRecorder()

	start := time.Now()
	h.GoogleCallback(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected the exchange to give up quickly, took %s", elapsed)
	}
	if c := findCookie(rr, session.CookieName); c != nil && c.Value != "" {
		t.Errorf("Expected no session cookie, got %+v", c)
	}
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		pingErr    error
		wantStatus int
		wantHealth string
		wantChecks bool
	}{
		{name: "basic mode ignores the store", query: "", pingErr: errors.New("down"), wantStatus: http.StatusOK, wantHealth: "healthy"},
		{name: "extended healthy", query: "?mode=extended", wantStatus: http.StatusOK, wantHealth: "healthy", wantChecks: true},
		{name: "extended unhealthy", query: "?mode=extended", pingErr: errors.New("down"), wantStatus: http.StatusServiceUnavailable, wantHealth: "unhealthy", wantChecks: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(stubPinger{err: tt.pingErr}, "mongodb")
			rr := httptest.NewRecorder()
			h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz"+tt.query, nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("Expected status %q, got %q", tt.wantHealth, resp.Status)
			}
			if _, ok := resp.Checks["mongodb"]; ok != tt.wantChecks {
				t.Errorf("Expected mongodb check present=%v, got %v", tt.wantChecks, resp.Checks)
			}
		})
	}
}

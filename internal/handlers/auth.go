package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/benvon/google-auth-api/internal/request"
	"github.com/benvon/google-auth-api/internal/services/auth"
	"github.com/benvon/google-auth-api/internal/services/google"
	"github.com/benvon/google-auth-api/internal/services/session"
	"github.com/benvon/google-auth-api/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

// LoginRequest is the body of POST /auth/google
type LoginRequest struct {
	Token string `json:"token" validate:"required,opaque_token"`
}

// LoginResponse is returned by a successful login. JWTToken is omitted in cookie-only mode.
type LoginResponse struct {
	Message  string            `json:"message"`
	JWTToken string            `json:"jwt_token,omitempty"`
	User     models.PublicUser `json:"user"`
}

// ProfileResponse is returned by GET /auth/profile
type ProfileResponse struct {
	User models.PublicUser `json:"user"`
}

// MessageResponse carries a single human-readable message
type MessageResponse struct {
	Message string `json:"message"`
}

// OAuthClient is the redirect-flow subset of google.OAuthClient
type OAuthClient interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	auth        *auth.Service
	transport   *session.Transport
	redirect    *session.Transport
	oauth       OAuthClient
	oauthWait   time.Duration
	frontendURL string
	secure      bool
	logger      *zap.Logger
}

// AuthHandlerConfig configures an AuthHandler
type AuthHandlerConfig struct {
	// OAuth enables the redirect flow when non-nil
	OAuth           OAuthClient
	FrontendURL     string
	SecureCookie    bool
	// UpstreamTimeout bounds the code exchange with Google
	UpstreamTimeout time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *auth.Service, transport *session.Transport, cfg AuthHandlerConfig, logger *zap.Logger) *AuthHandler {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = auth.DefaultUpstreamTimeout
	}
	return &AuthHandler{
		auth:        svc,
		transport:   transport,
		redirect:    session.NewTransport(session.ModeCookie, cfg.SecureCookie),
		oauth:       cfg.OAuth,
		oauthWait:   cfg.UpstreamTimeout,
		frontendURL: cfg.FrontendURL,
		secure:      cfg.SecureCookie,
		logger:      logger,
	}
}

// RegisterRoutes registers auth routes on the given router. requireSession
// guards the profile route.
func (h *AuthHandler) RegisterRoutes(r *mux.Router, requireSession mux.MiddlewareFunc) {
	r.HandleFunc("/auth/google", h.Login).Methods(http.MethodPost)
	r.Handle("/auth/profile", requireSession(http.HandlerFunc(h.Profile))).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/auth/google/login", h.GoogleLogin).Methods(http.MethodGet)
	r.HandleFunc("/auth/google/callback", h.GoogleCallback).Methods(http.MethodGet)
	r.HandleFunc("/hello-world", h.HelloWorld).Methods(http.MethodGet)
}

// Login exchanges a Google ID token for a session credential
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad request", "Request body must be a JSON object with a token field")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad request", validation.Message(err))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Token)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Message:  "User authenticated",
		JWTToken: h.transport.Deliver(w, result.Session.Value, result.Session.ExpiresAt),
		User:     result.User.Public(),
	})
}

// Profile returns the user named by the verified session claims
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := request.ClaimsFromContext(r)
	if claims == nil {
		respondError(w, r, h.logger, apperrors.ErrUnauthorized)
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), claims)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, ProfileResponse{User: user.Public()})
}

// Logout clears the session cookie. Issued credentials stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.transport.Clear(w)
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// GoogleLogin starts the server-side authorization code flow
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		respondJSONError(w, http.StatusNotFound, "Not found", "Redirect login is not enabled")
		return
	}

	state, err := google.NewState()
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, h.stateCookie(state, oauthStateMaxAge))
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback completes the authorization code flow, sets the session
// cookie and sends the browser back to the frontend
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		respondJSONError(w, http.StatusNotFound, "Not found", "Redirect login is not enabled")
		return
	}

	query := r.URL.Query()
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		h.logger.Warn("oauth_state_mismatch")
		respondJSONError(w, http.StatusBadRequest, "Bad request", "Invalid state parameter")
		return
	}
	http.SetCookie(w, h.stateCookie("", -1))

	if denied := query.Get("error"); denied != "" {
		respondJSONError(w, http.StatusBadRequest, "Bad request", "Authorization was not granted: "+denied)
		return
	}

	exchangeCtx, cancel := context.WithTimeout(r.Context(), h.oauthWait)
	idToken, err := h.oauth.ExchangeCode(exchangeCtx, query.Get("code"))
	cancel()
	if err != nil {
		respondError(w, r, h.logger, apperrors.Upstream(err))
		return
	}

	result, err := h.auth.Login(r.Context(), idToken)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	// a redirect has no body to carry the token
	h.redirect.Deliver(w, result.Session.Value, result.Session.ExpiresAt)
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// HelloWorld is a trivial liveness route
func (h *AuthHandler) HelloWorld(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Hello, World!"})
}

func (h *AuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/auth/google",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

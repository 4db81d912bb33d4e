package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// OAuthClient drives the server-side authorization code flow
type OAuthClient struct {
	config *oauth2.Config
}

// NewOAuthClient creates a client for Google's authorization endpoints.
// endpoint overrides the Google endpoints when non-nil.
func NewOAuthClient(clientID, clientSecret, redirectURL string, endpoint *oauth2.Endpoint) *OAuthClient {
	ep := endpoints.Google
	if endpoint != nil {
		ep = *endpoint
	}
	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     ep,
		},
	}
}

// AuthCodeURL returns the consent URL carrying state
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// ExchangeCode trades an authorization code for the ID token Google returns alongside the access token
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: missing authorization code", apperrors.ErrBadRequest)
	}

	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			return "", fmt.Errorf("%w: code exchange rejected", apperrors.ErrVerificationFailed)
		}
		return "", upstreamErr(fmt.Errorf("code exchange failed: %w", err))
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", fmt.Errorf("%w: token response carried no id_token", apperrors.ErrVerificationFailed)
	}
	return idToken, nil
}

// NewState returns a random value for the OAuth state parameter
func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

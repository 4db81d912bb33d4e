package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	respondJSONError(rr, http.StatusBadRequest, "Bad request", strings.Repeat("x", 500))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body["message"]) > maxErrorMessageLength+3 {
		t.Errorf("Expected message bounded to %d characters, got %d", maxErrorMessageLength, len(body["message"]))
	}

	rr = httptest.NewRecorder()
	respondJSONError(rr, http.StatusUnauthorized, "Unauthorized", "")
	if strings.Contains(rr.Body.String(), "message") {
		t.Errorf("Expected message to be omitted, got %s", rr.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantError     string
		wantMessage   string
		hiddenMessage string
		wantLogged    bool
	}{
		{
			name:        "verification detail is echoed",
			err:         fmt.Errorf("%w: token expired", apperrors.ErrVerificationFailed),
			wantStatus:  http.StatusBadRequest,
			wantError:   "Invalid token",
			wantMessage: "token expired",
		},
		{
			name:          "invalid credential hides detail",
			err:           fmt.Errorf("%w: signature mismatch for key k1", apperrors.ErrInvalidCredential),
			wantStatus:    http.StatusBadRequest,
			wantError:     "Invalid token",
			hiddenMessage: "k1",
		},
		{
			name:          "upstream hides detail",
			err:           fmt.Errorf("%w: dial tcp 10.0.0.5:27017", apperrors.ErrUpstreamUnavailable),
			wantStatus:    http.StatusServiceUnavailable,
			wantError:     "Service unavailable",
			hiddenMessage: "10.0.0.5",
			wantLogged:    true,
		},
		{
			name:       "user not found",
			err:        fmt.Errorf("find user: %w", apperrors.ErrUserNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "User not found",
		},
		{
			name:       "email conflict",
			err:        fmt.Errorf("create user: %w", apperrors.ErrConflict),
			wantStatus: http.StatusConflict,
			wantError:  "Conflict",
		},
		{
			name:          "unexpected error",
			err:           errors.New("pq: relation users does not exist"),
			wantStatus:    http.StatusInternalServerError,
			hiddenMessage: "relation",
			wantLogged:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.ErrorLevel)
			rr := httptest.NewRecorder()
			respondError(rr, httptest.NewRequest(http.MethodGet, "/auth/profile", nil), zap.New(core), tt.err)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("Expected error %q, got %q", tt.wantError, body["error"])
			}
			if tt.wantMessage != "" && !strings.Contains(body["message"], tt.wantMessage) {
				t.Errorf("Expected message to contain %q, got %q", tt.wantMessage, body["message"])
			}
			if tt.hiddenMessage != "" && strings.Contains(rr.Body.String(), tt.hiddenMessage) {
				t.Errorf("Expected %q to stay out of the response, got %s", tt.hiddenMessage, rr.Body.String())
			}
			if got := logs.FilterMessage("request_failed").Len() > 0; got != tt.wantLogged {
				t.Errorf("Expected request_failed logged=%v, got %v", tt.wantLogged, got)
			}
		})
	}
}

package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie that carries the credential in cookie mode
const CookieName = "token"

// Mode selects how credentials travel between client and server
type Mode string

const (
	// ModeHeader returns the credential in the login body and reads Authorization: Bearer
	ModeHeader Mode = "header"
	// ModeCookie sets an HttpOnly cookie and reads it back
	ModeCookie Mode = "cookie"
	// ModeBoth does both and accepts either on the way in
	ModeBoth Mode = "both"
)

// ParseMode validates a transport mode string
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeHeader, ModeCookie, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("invalid credential transport %q (valid options: header, cookie, both)", s)
	}
}

// Transport delivers and extracts credentials according to Mode
type Transport struct {
	mode   Mode
	secure bool
	now    func() time.Time
}

// NewTransport creates a transport. secure controls the cookie Secure flag and
// should be true in production.
func NewTransport(mode Mode, secure bool) *Transport {
	return &Transport{mode: mode, secure: secure, now: time.Now}
}

func (t *Transport) usesCookie() bool {
	return t.mode == ModeCookie || t.mode == ModeBoth
}

func (t *Transport) usesHeader() bool {
	return t.mode == ModeHeader || t.mode == ModeBoth
}

// Extract returns the credential presented by the request, if any
func (t *Transport) Extract(r *http.Request) (string, bool) {
	if t.usesHeader() {
		if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
			return token, true
		}
	}
	if t.usesCookie() {
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// Deliver attaches the credential to the response. It returns the value to
// include in the JSON body, which is empty in cookie-only mode.
func (t *Transport) Deliver(w http.ResponseWriter, token string, expiresAt time.Time) string {
	if t.usesCookie() {
		maxAge := int(expiresAt.Sub(t.now()).Seconds())
		if maxAge < 1 {
			maxAge = 1
		}
		http.SetCookie(w, t.cookie(token, maxAge))
	}
	if t.usesHeader() {
		return token
	}
	return ""
}

// Clear removes the credential cookie using the same attributes it was set with
func (t *Transport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, t.cookie("", -1))
}

func (t *Transport) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

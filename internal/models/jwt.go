package models

import "time"

// GoogleClaims represents the verified claims extracted from a Google ID token
type GoogleClaims struct {
	Sub           string `json:"sub"`            // Stable Google subject id
	Email         string `json:"email"`          // User email
	EmailVerified bool   `json:"email_verified"` // Whether Google verified the email
	Name          string `json:"name"`           // Display name
	Picture       string `json:"picture"`        // Avatar URL
	Iss           string `json:"iss"`            // Issuer
	Aud           string `json:"aud"`            // Audience (our client id)
	Exp           int64  `json:"exp"`            // Expiration time
}

// SessionClaims is the minimal claim set embedded in an issued session credential
type SessionClaims struct {
	UserID  string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// SessionToken is a minted credential together with its validity window
type SessionToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ClaimsFor builds session claims for a user
func ClaimsFor(u *User) SessionClaims {
	return SessionClaims{
		UserID:  u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Picture: u.Picture,
	}
}

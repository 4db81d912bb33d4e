package models

import (
	"time"
)

// User represents one authenticated Google identity in the directory
type User struct {
	ID        string    `json:"id"`
	GoogleID  string    `json:"-"` // Provider subject id, never serialized
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PublicUser is the projection returned to clients. It never carries the
// provider subject id.
type PublicUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Public returns the client-safe projection of the user
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Picture: u.Picture,
	}
}

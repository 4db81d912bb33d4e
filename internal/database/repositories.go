package database

import (
	"context"
	"errors"
	"net"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
)

// UserDirectory maps Google subject ids to local user records.
// Implementations never cache; every call reaches the backing store.
type UserDirectory interface {
	// FindBySubjectID returns apperrors.ErrUserNotFound when no record matches
	FindBySubjectID(ctx context.Context, subjectID string) (*models.User, error)
	// FindByID returns apperrors.ErrUserNotFound for unknown or malformed ids
	FindByID(ctx context.Context, id string) (*models.User, error)
	// Create assigns user.ID and user.CreatedAt. Returns apperrors.ErrConflict
	// when the subject id or email is already taken.
	Create(ctx context.Context, user *models.User) error
	// List returns up to limit records ordered by creation time
	List(ctx context.Context, limit int) ([]*models.User, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Ensure concrete types implement the interface
var (
	_ UserDirectory = (*MongoUserRepository)(nil)
	_ UserDirectory = (*PostgresUserRepository)(nil)
	_ UserDirectory = (*MemoryUserRepository)(nil)
)

// DefaultListLimit bounds List when callers pass a non-positive limit
const DefaultListLimit = 50

// upstream marks store errors caused by timeouts or unreachable servers so
// handlers answer 503 instead of 500.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Join(apperrors.ErrUpstreamUnavailable, err)
	}
	return apperrors.Upstream(err)
}

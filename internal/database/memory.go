package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/google/uuid"
)

// MemoryUserRepository is a process-local directory for development and tests.
// It enforces the same unique constraints as the persistent backends.
type MemoryUserRepository struct {
	mu        sync.RWMutex
	byID      map[string]models.User
	bySubject map[string]string
	byEmail   map[string]string
}

// NewMemoryUserRepository creates an empty in-memory directory
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:      make(map[string]models.User),
		bySubject: make(map[string]string),
		byEmail:   make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.bySubject[user.GoogleID]; taken {
		return fmt.Errorf("failed to create user: %w", apperrors.ErrConflict)
	}
	if _, taken := r.byEmail[user.Email]; taken {
		return fmt.Errorf("failed to create user: %w", apperrors.ErrConflict)
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	r.byID[user.ID] = *user
	r.bySubject[user.GoogleID] = user.ID
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) FindBySubjectID(_ context.Context, subjectID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySubject[subjectID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	user := r.byID[id]
	return &user, nil
}

func (r *MemoryUserRepository) List(_ context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	r.mu.RLock()
	users := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		user := u
		users = append(users, &user)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// Delete removes a user. The HTTP surface never deletes users; this models
// out-of-band removal.
func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	delete(r.byID, id)
	delete(r.bySubject, user.GoogleID)
	delete(r.byEmail, user.Email)
	return nil
}

// Count returns the number of stored users
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryUserRepository) Ping(_ context.Context) error { return nil }

func (r *MemoryUserRepository) Close(_ context.Context) error { return nil }

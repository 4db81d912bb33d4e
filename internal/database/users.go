package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

const usersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id         UUID PRIMARY KEY,
		google_id  TEXT NOT NULL UNIQUE,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		picture    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)
`

// PostgresUserRepository stores users in PostgreSQL
type PostgresUserRepository struct {
	db *DB
}

// NewPostgresUserRepository creates a new PostgreSQL-backed user directory
func NewPostgresUserRepository(db *DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// EnsureSchema creates the users table and its unique constraints if missing
func (r *PostgresUserRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("failed to ensure users schema: %w", upstream(err))
	}
	return nil
}

// Create creates a new user
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, google_id, email, name, picture, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	id := uuid.New()
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		id,
		user.GoogleID,
		user.Email,
		user.Name,
		user.Picture,
		time.Now().UTC(),
	).Scan(&id, &createdAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("failed to create user: %w", apperrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", upstream(err))
	}

	user.ID = id.String()
	user.CreatedAt = createdAt
	return nil
}

// FindByID retrieves a user by local ID
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("malformed user id: %w", apperrors.ErrUserNotFound)
	}
	return r.getOne(ctx, `
		SELECT id, google_id, email, name, picture, created_at
		FROM users
		WHERE id = $1
	`, parsed)
}

// FindBySubjectID retrieves a user by Google subject ID
func (r *PostgresUserRepository) FindBySubjectID(ctx context.Context, subjectID string) (*models.User, error) {
	return r.getOne(ctx, `
		SELECT id, google_id, email, name, picture, created_at
		FROM users
		WHERE google_id = $1
	`, subjectID)
}

// List returns up to limit users, oldest first
func (r *PostgresUserRepository) List(ctx context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, google_id, email, name, picture, created_at
		FROM users
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", upstream(err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", upstream(err))
	}
	return users, nil
}

// Ping checks that PostgreSQL is reachable
func (r *PostgresUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the connection pool
func (r *PostgresUserRepository) Close(_ context.Context) error {
	return r.db.Close()
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", upstream(err))
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var id uuid.UUID
	user := &models.User{}
	if err := row.Scan(
		&id,
		&user.GoogleID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.ID = id.String()
	return user, nil
}

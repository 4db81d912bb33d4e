package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Backend names the store selected by a connection string scheme
type Backend string

const (
	BackendMongo    Backend = "mongodb"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// BackendFor returns the backend for a connection string
func BackendFor(connString string) (Backend, error) {
	u, err := url.Parse(strings.TrimSpace(connString))
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("invalid connection string")
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "memory":
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("unsupported connection string scheme %q", u.Scheme)
	}
}

// Open connects to the store named by connString and prepares its
// constraints. mongoDatabase is only used by the MongoDB backend.
func Open(ctx context.Context, connString, mongoDatabase string) (UserDirectory, error) {
	backend, err := BackendFor(connString)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendMongo:
		repo, err := NewMongo(ctx, connString, mongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close(context.Background())
			return nil, err
		}
		return repo, nil
	case BackendPostgres:
		db, err := New(connString)
		if err != nil {
			return nil, err
		}
		repo := NewPostgresUserRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return repo, nil
	default:
		return NewMemoryUserRepository(), nil
	}
}

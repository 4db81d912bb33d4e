package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/google-auth-api/internal/config"
	"github.com/benvon/google-auth-api/internal/database"
	"github.com/spf13/cobra"
)

const storeTimeout = 15 * time.Second

// Env supplies configuration and the user store to commands
type Env struct {
	LoadConfig    func() (*config.Config, error)
	OpenDirectory func(ctx context.Context, cfg *config.Config) (database.UserDirectory, error)
}

// DefaultEnv reads the process environment and connects to the configured store
func DefaultEnv() Env {
	return Env{
		LoadConfig: config.Load,
		OpenDirectory: func(ctx context.Context, cfg *config.Config) (database.UserDirectory, error) {
			return database.Open(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
		},
	}
}

// NewRootCmd creates the operator CLI
func NewRootCmd(env Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "google-auth-configure",
		Short:         "Operator tool for the Google auth API",
		Long:          "CLI tool for inspecting users, minting and checking session credentials, and validating configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewUsersCmd(env))
	rootCmd.AddCommand(NewTokenCmd(env))
	rootCmd.AddCommand(NewConfigCmd(env))

	return rootCmd
}

// withDirectory loads config, opens the store and runs fn against it
func withDirectory(cmd *cobra.Command, env Env, fn func(ctx context.Context, cfg *config.Config, dir database.UserDirectory) error) error {
	cfg, err := env.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
	defer cancel()

	dir, err := env.OpenDirectory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to user store: %w", err)
	}
	defer func() {
		if err := dir.Close(context.Background()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close user store: %v\n", err)
		}
	}()

	return fn(ctx, cfg, dir)
}

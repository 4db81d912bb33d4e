package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/config"
	"github.com/benvon/google-auth-api/internal/database"
	"github.com/spf13/cobra"
)

// NewUsersCmd creates the users command group
func NewUsersCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect user records",
	}
	cmd.AddCommand(newUsersListCmd(env))
	cmd.AddCommand(newUsersShowCmd(env))
	return cmd
}

func newUsersListCmd(env Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, env, func(ctx context.Context, _ *config.Config, dir database.UserDirectory) error {
				users, err := dir.List(ctx, limit)
				if err != nil {
					return fmt.Errorf("failed to list users: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, "No users found")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.CreatedAt.UTC().Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", database.DefaultListLimit, "Maximum number of users to list")

	return cmd
}

func newUsersShowCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, env, func(ctx context.Context, _ *config.Config, dir database.UserDirectory) error {
				u, err := dir.FindByID(ctx, args[0])
				if errors.Is(err, apperrors.ErrUserNotFound) {
					return fmt.Errorf("user %s not found", args[0])
				}
				if err != nil {
					return fmt.Errorf("failed to look up user: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", u.ID)
				fmt.Fprintf(out, "Google ID: %s\n", u.GoogleID)
				fmt.Fprintf(out, "Email:     %s\n", u.Email)
				fmt.Fprintf(out, "Name:      %s\n", u.Name)
				if u.Picture != "" {
					fmt.Fprintf(out, "Picture:   %s\n", u.Picture)
				}
				fmt.Fprintf(out, "Created:   %s\n", u.CreatedAt.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
}

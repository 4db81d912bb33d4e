package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/google-auth-api/internal/database"
	"github.com/benvon/google-auth-api/internal/services/google"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const probeTimeout = 10 * time.Second

// configView is the printable form of config.Config
type configView struct {
	GoogleClientID      string   `yaml:"google_client_id"`
	GoogleClientSecret  string   `yaml:"google_client_secret,omitempty"`
	GoogleRedirectURL   string   `yaml:"google_redirect_url,omitempty"`
	JWTSecret           string   `yaml:"jwt_secret"`
	StoreURL            string   `yaml:"store_url"`
	StoreBackend        string   `yaml:"store_backend"`
	MongoDatabase       string   `yaml:"mongo_database,omitempty"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	FrontendURL         string   `yaml:"frontend_url"`
	ServerPort          string   `yaml:"server_port"`
	CredentialTransport string   `yaml:"credential_transport"`
	SessionTTL          string   `yaml:"session_ttl"`
	UpstreamTimeout     string   `yaml:"upstream_timeout"`
	Environment         string   `yaml:"environment,omitempty"`
	RedirectFlow        bool     `yaml:"redirect_flow_enabled"`
	EnableHSTS          bool     `yaml:"enable_hsts"`
	OTELEnabled         bool     `yaml:"otel_enabled"`
}

// NewConfigCmd creates the config command group
func NewConfigCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate configuration",
	}
	cmd.AddCommand(newConfigCheckCmd(env))
	return cmd
}

func newConfigCheckCmd(env Env) *cobra.Command {
	var probeStore, probeJWKS bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load configuration and print it with secrets masked",
		Long:  "Load configuration the way the server does and print it with secrets masked. Optionally check that the user store and Google's signing keys are reachable.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			backend, _ := database.BackendFor(cfg.DatabaseURL)
			r := cfg.Redacted()
			view := configView{
				GoogleClientID:      r.GoogleClientID,
				GoogleClientSecret:  r.GoogleClientSecret,
				GoogleRedirectURL:   r.GoogleRedirectURL,
				JWTSecret:           r.JWTSecret,
				StoreURL:            r.DatabaseURL,
				StoreBackend:        string(backend),
				AllowedOrigins:      r.AllowedOrigins,
				FrontendURL:         r.FrontendURL,
				ServerPort:          r.ServerPort,
				CredentialTransport: string(r.CredentialTransport),
				SessionTTL:          r.SessionTTL.String(),
				UpstreamTimeout:     r.UpstreamTimeout.String(),
				Environment:         r.Environment,
				RedirectFlow:        r.RedirectFlowEnabled(),
				EnableHSTS:          r.EnableHSTS,
				OTELEnabled:         r.OTELEnabled,
			}
			if backend == database.BackendMongo {
				view.MongoDatabase = r.MongoDatabase
			}

			out := cmd.OutOrStdout()
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return fmt.Errorf("failed to print configuration: %w", err)
			}
			if err := enc.Close(); err != nil {
				return err
			}

			if probeStore {
				ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
				defer cancel()
				dir, err := env.OpenDirectory(ctx, cfg)
				if err != nil {
					return fmt.Errorf("user store unreachable: %w", err)
				}
				pingErr := dir.Ping(ctx)
				_ = dir.Close(context.Background())
				if pingErr != nil {
					return fmt.Errorf("user store unreachable: %w", pingErr)
				}
				fmt.Fprintln(out, "✓ User store is reachable")
			}

			if probeJWKS {
				ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
				defer cancel()
				set, err := google.NewJWKSManager().GetJWKS(ctx, google.DefaultJWKSURL)
				if err != nil {
					return fmt.Errorf("google signing keys unavailable: %w", err)
				}
				fmt.Fprintf(out, "✓ Google signing keys reachable (%d keys)\n", set.Len())
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&probeStore, "probe-store", false, "Connect to the user store and ping it")
	cmd.Flags().BoolVar(&probeJWKS, "probe-jwks", false, "Fetch Google's signing keys")

	return cmd
}

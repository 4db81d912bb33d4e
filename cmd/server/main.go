package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/google-auth-api/internal/config"
	"github.com/benvon/google-auth-api/internal/database"
	"github.com/benvon/google-auth-api/internal/handlers"
	"github.com/benvon/google-auth-api/internal/logger"
	"github.com/benvon/google-auth-api/internal/metrics"
	"github.com/benvon/google-auth-api/internal/services/auth"
	"github.com/benvon/google-auth-api/internal/services/google"
	"github.com/benvon/google-auth-api/internal/services/session"
	"github.com/benvon/google-auth-api/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.Environment, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	backend, _ := database.BackendFor(cfg.DatabaseURL)
	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("store_backend", string(backend)),
		zap.String("credential_transport", string(cfg.CredentialTransport)),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Bool("redirect_flow_enabled", cfg.RedirectFlowEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Options{
				Endpoint: cfg.OTELEndpoint,
				Insecure: !cfg.IsProduction(),
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// the service refuses to start without a reachable user store
	startupCtx, startupCancel := context.WithTimeout(context.Background(), startupTimeout)
	directory, err := database.Open(startupCtx, cfg.DatabaseURL, cfg.MongoDatabase)
	startupCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_user_store", zap.String("store_backend", string(backend)), zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := directory.Close(closeCtx); err != nil {
			zapLogger.Warn("failed_to_close_user_store", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_user_store", zap.String("store_backend", string(backend)))

	verifier, err := google.NewIDTokenVerifier(google.NewJWKSManager(), cfg.GoogleClientID)
	if err != nil {
		zapLogger.Fatal("failed_to_create_identity_verifier", zap.Error(err))
	}
	issuer, err := session.NewIssuer([]byte(cfg.JWTSecret))
	if err != nil {
		zapLogger.Fatal("failed_to_create_session_issuer", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	svc := auth.NewService(verifier, directory, issuer, auth.Config{
		SessionTTL:      cfg.SessionTTL,
		UpstreamTimeout: cfg.UpstreamTimeout,
	}, zapLogger, collector)

	var oauthClient handlers.OAuthClient
	if cfg.RedirectFlowEnabled() {
		oauthClient = google.NewOAuthClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, nil)
	}

	handler := newRouter(routerDeps{
		cfg:       cfg,
		service:   svc,
		transport: session.NewTransport(cfg.CredentialTransport, cfg.IsProduction()),
		oauth:     oauthClient,
		directory: directory,
		backend:   backend,
		gatherer:  registry,
		tracing:   tracingEnabled,
		logger:    zapLogger,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

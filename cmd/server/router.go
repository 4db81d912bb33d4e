package main

import (
	"net/http"

	"github.com/benvon/google-auth-api/internal/config"
	"github.com/benvon/google-auth-api/internal/database"
	"github.com/benvon/google-auth-api/internal/handlers"
	"github.com/benvon/google-auth-api/internal/metrics"
	"github.com/benvon/google-auth-api/internal/middleware"
	"github.com/benvon/google-auth-api/internal/services/auth"
	"github.com/benvon/google-auth-api/internal/services/session"
	"github.com/benvon/google-auth-api/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

type routerDeps struct {
	cfg       *config.Config
	service   *auth.Service
	transport *session.Transport
	// oauth is nil when the redirect flow is disabled
	oauth     handlers.OAuthClient
	directory handlers.Pinger
	backend   database.Backend
	gatherer  prometheus.Gatherer
	tracing   bool
	logger    *zap.Logger
}

// newRouter assembles routes and middleware. Middleware registered first runs first.
func newRouter(d routerDeps) http.Handler {
	r := mux.NewRouter()

	if d.tracing {
		r.Use(otelmux.Middleware(telemetry.DefaultServiceName))
	}
	r.Use(middleware.SecurityHeaders(d.cfg.EnableHSTS))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(d.logger))
	r.Use(middleware.Audit(d.logger))
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	r.HandleFunc("/healthz", handlers.NewHealthChecker(d.directory, string(d.backend)).HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler(d.gatherer)).Methods(http.MethodGet)
	handlers.NewOpenAPIHandler().RegisterRoutes(r)

	authHandler := handlers.NewAuthHandler(d.service, d.transport, handlers.AuthHandlerConfig{
		OAuth:           d.oauth,
		FrontendURL:     d.cfg.FrontendURL,
		SecureCookie:    d.cfg.IsProduction(),
		UpstreamTimeout: d.cfg.UpstreamTimeout,
	}, d.logger)
	authHandler.RegisterRoutes(r, middleware.RequireSession(d.service, d.transport, d.logger))

	// mux middleware only runs on matched routes, so CORS wraps the whole
	// router to answer preflight requests
	return middleware.CORS(d.cfg.AllowedOrigins, d.logger)(r)
}

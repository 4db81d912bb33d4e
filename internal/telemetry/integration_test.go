package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/google-auth-api/internal/database"
	"github.com/benvon/google-auth-api/internal/handlers"
	"github.com/benvon/google-auth-api/internal/middleware"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/benvon/google-auth-api/internal/services/auth"
	"github.com/benvon/google-auth-api/internal/services/google/googletest"
	"github.com/benvon/google-auth-api/internal/services/session"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// TestLoginTrace checks that a login request yields one trace covering the
// HTTP route, identity verification and directory calls
func TestLoginTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	Install(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	issuer, err := session.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	verifier := googletest.NewVerifier().Add("google-token", models.GoogleClaims{
		Sub:   "g-123",
		Email: "a@x.com",
		Name:  "A",
	})
	svc := auth.NewService(verifier, database.NewMemoryUserRepository(), issuer, auth.Config{}, nil, nil)
	transport := session.NewTransport(session.ModeHeader, false)

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("test-service"))
	handlers.NewAuthHandler(svc, transport, handlers.AuthHandlerConfig{}, zap.NewNop()).
		RegisterRoutes(r, middleware.RequireSession(svc, transport, zap.NewNop()))

	tests := []struct {
		name        string
		traceParent string
	}{
		{name: "without existing trace ID"},
		{name: "with existing trace ID", traceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"token":"google-token"}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}

			spans := exporter.GetSpans()
			byName := make(map[string]tracetest.SpanStub, len(spans))
			for _, s := range spans {
				byName[s.Name] = s
			}
			for _, name := range []string{"auth.login", "auth.verify_identity", "directory.find_by_subject"} {
				if _, ok := byName[name]; !ok {
					t.Errorf("Expected span %q, got %d spans", name, len(spans))
				}
			}

			traceID := byName["auth.login"].SpanContext.TraceID()
			if !traceID.IsValid() {
				t.Fatal("Expected valid trace ID")
			}
			for _, s := range spans {
				if s.SpanContext.TraceID() != traceID {
					t.Errorf("Expected span %q in trace %s, got %s", s.Name, traceID, s.SpanContext.TraceID())
				}
			}
			if tt.traceParent != "" && traceID.String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
				t.Errorf("Expected inbound trace ID to be continued, got %s", traceID)
			}
		})
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	directory Pinger
	backend   string
}

// NewHealthChecker creates a new health checker. backend names the user
// directory in extended output.
func NewHealthChecker(directory Pinger, backend string) *HealthChecker {
	return &HealthChecker{directory: directory, backend: backend}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") != "extended" {
		respondJSON(w, http.StatusOK, response)
		return
	}

	name := "directory"
	if h.backend != "" {
		name = h.backend
	}

	checks := make(map[string]string)
	if err := h.checkDirectory(r.Context()); err != nil {
		response.Status = "unhealthy"
		checks[name] = "unhealthy"
	} else {
		checks[name] = "healthy"
	}
	response.Checks = checks

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	respondJSON(w, statusCode, response)
}

func (h *HealthChecker) checkDirectory(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	return h.directory.Ping(ctx)
}

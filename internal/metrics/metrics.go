// Package metrics exposes Prometheus counters and histograms for the login flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes
const (
	OutcomeSuccess         = "success"
	OutcomeBadRequest      = "bad_request"
	OutcomeRejected        = "rejected"
	OutcomeNotFound        = "not_found"
	OutcomeUpstreamFailure = "upstream_unavailable"
	OutcomeInternalFailure = "internal_error"
)

// Upstream dependencies timed by ObserveUpstream
const (
	UpstreamIdentityProvider = "identity_provider"
	UpstreamDirectory        = "directory"
)

// Recorder is what the auth service reports to
type Recorder interface {
	RecordLogin(outcome string)
	RecordUserCreated()
	RecordCreateConflict()
	RecordProfile(outcome string)
	ObserveUpstream(dependency string, d time.Duration)
}

// Collector implements Recorder with Prometheus metrics
type Collector struct {
	logins          *prometheus.CounterVec
	profiles        *prometheus.CounterVec
	usersCreated    prometheus.Counter
	createConflicts prometheus.Counter
	upstreamLatency *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_profile_requests_total",
			Help: "Profile lookups by outcome",
		}, []string{"outcome"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_users_created_total",
			Help: "User records created on first login",
		}),
		createConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_user_create_conflicts_total",
			Help: "Creates that lost a concurrent first-login race and were resolved by re-fetch",
		}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_upstream_latency_seconds",
			Help:    "Latency of calls to the identity provider and the user directory",
			Buckets: prometheus.DefBuckets,
		}, []string{"dependency"}),
	}

	reg.MustRegister(
		c.logins,
		c.profiles,
		c.usersCreated,
		c.createConflicts,
		c.upstreamLatency,
	)

	return c
}

// RecordLogin counts a login attempt
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordProfile counts a profile lookup
func (c *Collector) RecordProfile(outcome string) {
	c.profiles.WithLabelValues(outcome).Inc()
}

// RecordUserCreated counts a new user record
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordCreateConflict counts a create that hit a unique constraint
func (c *Collector) RecordCreateConflict() {
	c.createConflicts.Inc()
}

// ObserveUpstream records the latency of one upstream call
func (c *Collector) ObserveUpstream(dependency string, d time.Duration) {
	c.upstreamLatency.WithLabelValues(dependency).Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards everything. Used when metrics are not wired.
type Noop struct{}

func (Noop) RecordLogin(string) {}
func (Noop) RecordUserCreated() {}
func (Noop) RecordCreateConflict() {}
func (Noop) RecordProfile(string) {}
func (Noop) ObserveUpstream(string, time.Duration) {}

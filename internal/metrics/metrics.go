// Package metrics collects and exposes Prometheus metrics for the auth lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is what the session, profile, auth context and router layers record into.
type MetricsCollector interface {
	RecordSessionEvent(event string)
	RecordAuthFailure(op, code string)
	RecordResolution(outcome string)
	RecordNavigation(page string, allowed bool)
}

// Resolution outcomes
const (
	ResolutionFound   = "found"
	ResolutionCreated = "created"
	ResolutionStale   = "stale"
	ResolutionError   = "error"
)

// Collector is the Prometheus-backed MetricsCollector.
type Collector struct {
	sessionEvents *prometheus.CounterVec
	authFailures  *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	navigations   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buzz_session_events_total",
			Help: "Session change events delivered to listeners.",
		}, []string{"event"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buzz_auth_failures_total",
			Help: "Auth operations rejected, by operation and error code.",
		}, []string{"op", "code"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buzz_profile_resolutions_total",
			Help: "Profile resolutions by outcome.",
		}, []string{"outcome"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buzz_navigations_total",
			Help: "Page navigations by target page and gate result.",
		}, []string{"page", "allowed"}),
	}

	reg.MustRegister(
		c.sessionEvents,
		c.authFailures,
		c.resolutions,
		c.navigations,
	)

	return c
}

func (c *Collector) RecordSessionEvent(event string) {
	c.sessionEvents.WithLabelValues(event).Inc()
}

func (c *Collector) RecordAuthFailure(op, code string) {
	c.authFailures.WithLabelValues(op, code).Inc()
}

func (c *Collector) RecordResolution(outcome string) {
	c.resolutions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordNavigation(page string, allowed bool) {
	label := "false"
	if allowed {
		label = "true"
	}
	c.navigations.WithLabelValues(page, label).Inc()
}

// Nop discards everything. Used when no registry is wired and in tests.
type Nop struct{}

func (Nop) RecordSessionEvent(string)        {}
func (Nop) RecordAuthFailure(string, string) {}
func (Nop) RecordResolution(string)          {}
func (Nop) RecordNavigation(string, bool)    {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

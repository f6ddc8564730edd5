package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks requests by route template, method and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)

	// RateLimitedRequests tracks requests rejected by the per-IP limiter
	RateLimitedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_requests_total",
			Help: "Total requests rejected by the per-IP rate limiter",
		},
	)
)

// Account Metrics
var (
	// RegistrationsTotal tracks new accounts by role
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Total user registrations by role",
		},
		[]string{"role"},
	)

	// LoginsTotal tracks login attempts by method (password, mfa, google) and outcome
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Total login attempts by method and outcome",
		},
		[]string{"method", "outcome"},
	)
)

// Billing and Usage Metrics
var (
	// UsageLimitRejections tracks requests denied by a tier limit
	UsageLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_limit_rejections_total",
			Help: "Total operations rejected by a subscription tier limit",
		},
		[]string{"resource", "tier"},
	)

	// WebhookEventsTotal tracks Stripe webhook events by type and outcome
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Total Stripe webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// ReportsGenerated tracks PDF reports rendered
	ReportsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_generated_total",
			Help: "Total PDF progress reports generated",
		},
	)
)

// Integration Metrics
var (
	// EmailsTotal tracks outbound email by template and outcome
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_total",
			Help: "Total outbound emails by template and outcome",
		},
		[]string{"template", "outcome"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

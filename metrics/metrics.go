// Package metrics declares the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolver metrics
	ResolverRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_mate_resolver_requests_total",
			Help: "Resolved operations by the tier that served them",
		},
		[]string{"operation", "tier", "outcome"}, // tier: remote, local
	)

	RemoteFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_mate_remote_fallbacks_total",
			Help: "Remote failures answered by the local tier",
		},
		[]string{"operation"},
	)

	RemoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movie_mate_remote_duration_seconds",
			Help:    "Duration of upstream API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "movie_mate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_mate_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Catalogue metrics
	CatalogMovies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movie_mate_catalog_movies",
			Help: "Number of movies in the resident dataset",
		},
	)

	DatasetUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_mate_dataset_uploads_total",
			Help: "Dataset uploads by outcome",
		},
		[]string{"outcome"},
	)

	RatingsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movie_mate_ratings_synced_total",
			Help: "Local ratings replayed to the upstream API",
		},
	)

	// Auth metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_mate_auth_attempts_total",
			Help: "Login and registration attempts by outcome",
		},
		[]string{"action", "outcome"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_mate_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movie_mate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

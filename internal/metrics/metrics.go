package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the forum
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSize       *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Forum activity
	ThreadsCreatedTotal       prometheus.Counter
	PostsCreatedTotal         prometheus.Counter
	NotificationsCreatedTotal *prometheus.CounterVec
	ModerationActionsTotal    *prometheus.CounterVec

	// Auth and abuse
	AuthAttemptsTotal      *prometheus.CounterVec
	RateLimitExceededTotal *prometheus.CounterVec
	SecurityEventsTotal    *prometheus.CounterVec

	// Realtime and delivery
	WebSocketConnections    prometheus.Gauge
	WebSocketMessagesTotal  *prometheus.CounterVec
	WebhookDeliveriesTotal  *prometheus.CounterVec
	WebhookDeliveryDuration prometheus.Histogram
	SearchQueriesTotal      *prometheus.CounterVec
	CacheRequestsTotal      *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all collectors on the default registry.
// Safe to call more than once.
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of in-flight HTTP requests",
				},
				[]string{"method", "path"},
			),

			ThreadsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "forum_threads_created_total",
				Help: "Threads created",
			}),
			PostsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "forum_posts_created_total",
				Help: "Posts created",
			}),
			NotificationsCreatedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "forum_notifications_created_total",
					Help: "Notifications created by type",
				},
				[]string{"type"},
			),
			ModerationActionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "forum_moderation_actions_total",
					Help: "Moderation status changes by target and status",
				},
				[]string{"target", "status"},
			),

			AuthAttemptsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "auth_attempts_total",
					Help: "Authentication attempts by operation and outcome",
				},
				[]string{"operation", "outcome"},
			),
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by the rate limiter",
				},
				[]string{"limiter"},
			),
			SecurityEventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "security_events_total",
					Help: "Security events recorded by type and severity",
				},
				[]string{"type", "severity"},
			),

			WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "websocket_connections",
				Help: "Open websocket connections",
			}),
			WebSocketMessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "websocket_messages_total",
					Help: "Websocket messages sent by event type",
				},
				[]string{"type"},
			),
			WebhookDeliveriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notification_webhook_deliveries_total",
					Help: "Notification webhook deliveries by outcome",
				},
				[]string{"outcome"},
			),
			WebhookDeliveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "notification_webhook_delivery_seconds",
				Help:    "Notification webhook delivery latency",
				Buckets: prometheus.DefBuckets,
			}),
			SearchQueriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "forum_search_queries_total",
					Help: "Thread searches by backend",
				},
				[]string{"backend"},
			),
			CacheRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_requests_total",
					Help: "Cache lookups by cache name and result",
				},
				[]string{"cache_name", "result"},
			),
		}
	})

	return instance
}

// Get returns the metrics instance, initializing it on first use
func Get() *Metrics {
	return Initialize()
}

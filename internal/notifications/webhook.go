package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultQueueSize     = 256
	defaultTimeout       = 5 * time.Second
	tripAfterFailures    = 5
	breakerOpenDuration  = 30 * time.Second
	breakerHalfOpenProbe = 1
)

// WebhookPayload is the JSON body POSTed for each notification
type WebhookPayload struct {
	Event        string               `json:"event"`
	Notification *models.Notification `json:"notification"`
	SentAt       time.Time            `json:"sent_at"`
}

// DispatcherOptions tunes the webhook dispatcher
type DispatcherOptions struct {
	QueueSize   int
	Timeout     time.Duration
	OpenTimeout time.Duration
}

// Dispatcher delivers notifications to a webhook from a single worker.
// Deliveries go through a circuit breaker so a dead endpoint costs nothing.
type Dispatcher struct {
	url    string
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[struct{}]
	queue  chan *models.Notification

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewDispatcher creates a dispatcher for url and starts its worker
func NewDispatcher(url string, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = breakerOpenDuration
	}

	d := &Dispatcher{
		url: url,
		// deliveries show up as client spans when tracing is enabled
		client: resty.New().
			SetTransport(otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(string, *http.Request) string { return "webhook.deliver" }))).
			SetTimeout(opts.Timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "KhoshGolpo-Webhook/1.0"),
		queue: make(chan *models.Notification, opts.QueueSize),
		done:  make(chan struct{}),
	}

	d.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notification-webhook",
		MaxRequests: breakerHalfOpenProbe,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfterFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("Webhook circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	go d.run()
	return d
}

// Enqueue queues n for delivery. A full queue drops the notification.
func (d *Dispatcher) Enqueue(n *models.Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		metrics.Get().WebhookDeliveriesTotal.WithLabelValues("dropped").Inc()
		logger.Log.Warn("Webhook queue full, dropping notification", zap.String("notification_id", n.ID))
		return false
	}
}

// State reports the circuit breaker state
func (d *Dispatcher) State() gobreaker.State {
	return d.cb.State()
}

// Stop stops accepting work and waits for the queue to drain or ctx to end
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("webhook drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n *models.Notification) {
	start := time.Now()
	_, err := d.cb.Execute(func() (struct{}, error) {
		resp, err := d.client.R().
			SetBody(WebhookPayload{Event: EventNotificationCreated, Notification: n, SentAt: time.Now().UTC()}).
			Post(d.url)
		if err != nil {
			return struct{}{}, err
		}
		if resp.IsError() {
			return struct{}{}, fmt.Errorf("webhook responded %d", resp.StatusCode())
		}
		return struct{}{}, nil
	})
	metrics.Get().WebhookDeliveryDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.Get().WebhookDeliveriesTotal.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.Get().WebhookDeliveriesTotal.WithLabelValues("rejected").Inc()
		logger.Log.Debug("Webhook delivery skipped, circuit open", zap.String("notification_id", n.ID))
	default:
		metrics.Get().WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
		logger.Log.Warn("Webhook delivery failed", zap.String("notification_id", n.ID), zap.Error(err))
	}
}

package client

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const defaultPollInterval = 30 * time.Second

// Health reads /health. A 503 still decodes: the body names the failing
// dependency, and the returned error is the APIError for the status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return nil, err
	}

	var health Health
	if decodeErr := json.Unmarshal(resp.Body(), &health); decodeErr != nil || health.Status == "" {
		if resp.IsError() {
			return nil, ParseError(resp)
		}
		if decodeErr == nil {
			decodeErr = errors.New("health response has no status")
		}
		return nil, decodeErr
	}
	if resp.StatusCode() != http.StatusOK {
		apiErr := ParseError(resp)
		apiErr.Code = "service_unavailable"
		apiErr.Message = "service degraded"
		return &health, apiErr
	}
	return &health, nil
}

// HealthResult is one poll outcome. Health is nil when the API could not be
// reached at all.
type HealthResult struct {
	Health    *Health
	Err       error
	CheckedAt time.Time
	Latency   time.Duration
}

// Healthy reports whether the API answered and every dependency was up
func (r HealthResult) Healthy() bool {
	return r.Err == nil && r.Health.OK()
}

// HealthPoller checks /health on an interval
type HealthPoller struct {
	client   *Client
	interval time.Duration
}

// NewHealthPoller polls every interval (30s when zero)
func NewHealthPoller(c *Client, interval time.Duration) *HealthPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &HealthPoller{client: c, interval: interval}
}

// Run checks immediately, then on every tick until ctx ends. report is
// called from Run's goroutine.
func (p *HealthPoller) Run(ctx context.Context, report func(HealthResult)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		report(p.check(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *HealthPoller) check(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	start := time.Now()
	health, err := p.client.Health(checkCtx)
	return HealthResult{
		Health:    health,
		Err:       err,
		CheckedAt: start,
		Latency:   time.Since(start),
	}
}

package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/cache"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/errors"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	// redis counters use fixed one-minute windows
	redisWindow = time.Minute
)

// RateLimitConfig is a token bucket: RPS sustained, Burst at once
type RateLimitConfig struct {
	Name  string  `json:"-"`
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

// windowLimit is the request budget for one redis window
func (c RateLimitConfig) windowLimit() int64 {
	return int64(math.Ceil(c.RPS*redisWindow.Seconds())) + int64(c.Burst)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client key. Keys are the authenticated
// user id when known (from the context or the key func), else the client IP.
// With Redis attached the budget is shared across instances; Redis errors
// fall back to the in-memory buckets.
type RateLimiter struct {
	config     RateLimitConfig
	redis      *cache.RedisClient
	recorder   *security.Recorder
	violations *ViolationLog
	keyFunc    func(*gin.Context) string

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

// NewRateLimiter creates a limiter. redis, recorder and violations may be nil.
func NewRateLimiter(config RateLimitConfig, redis *cache.RedisClient, recorder *security.Recorder, violations *ViolationLog) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:     config,
		redis:      redis,
		recorder:   recorder,
		violations: violations,
		limiters:   make(map[string]*limiterEntry),
	}
}

// SetKeyFunc resolves a client key for requests that reach the limiter
// before authentication has run. An empty result falls back to the IP.
func (rl *RateLimiter) SetKeyFunc(fn func(*gin.Context) string) {
	rl.keyFunc = fn
}

func (rl *RateLimiter) Config() RateLimitConfig {
	return rl.config
}

// Backend reports where counters live
func (rl *RateLimiter) Backend() string {
	if rl.redis != nil {
		return BackendRedis
	}
	return BackendMemory
}

// TrackedClients is the number of live redis windows, or of in-memory
// buckets without redis or when redis cannot be reached
func (rl *RateLimiter) TrackedClients(ctx context.Context) int {
	if rl.redis != nil {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		n, err := rl.redis.CountKeys(ctx, rl.redisKey("*"))
		if err == nil {
			return n
		}
		logger.Log.Warn("Failed to count redis rate limit keys",
			zap.String("limiter", rl.config.Name), zap.Error(err))
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Allow reports whether key may proceed and, when not, how long to wait
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	now := time.Now()

	if rl.redis != nil {
		allowed, retry, err := rl.allowRedis(ctx, key)
		if err == nil {
			return allowed, retry
		}
		logger.Log.Warn("Redis rate limit check failed, using in-memory limiter",
			zap.String("limiter", rl.config.Name), zap.Error(err))
	}

	limiter := rl.getLimiter(key, now)
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	count, ttl, err := rl.redis.IncrWindow(ctx, rl.redisKey(key), redisWindow)
	if err != nil {
		return false, 0, err
	}
	if count > rl.config.windowLimit() {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Handler returns the gin middleware
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.clientKey(c)

		allowed, retryAfter := rl.Allow(c.Request.Context(), key)
		if allowed {
			c.Next()
			return
		}

		rl.reject(c, key, retryAfter)
	}
}

func (rl *RateLimiter) clientKey(c *gin.Context) string {
	if id := c.GetString(util.ContextUserIDKey); id != "" {
		return id
	}
	if rl.keyFunc != nil {
		if id := rl.keyFunc(c); id != "" {
			return id
		}
	}
	return c.ClientIP()
}

func (rl *RateLimiter) redisKey(key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", rl.config.Name, key)
}

func (rl *RateLimiter) reject(c *gin.Context, key string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}

	metrics.Get().RateLimitExceededTotal.WithLabelValues(rl.config.Name).Inc()
	first := true
	if rl.violations != nil {
		first = rl.violations.Add(key, path, time.Now().UTC())
	}

	// one audit row per client and path per minute keeps a flood from flooding the table
	if rl.recorder != nil && first {
		rl.recorder.Record(c.Request.Context(), security.FromRequest(c, security.Event{
			Type:     models.EventRateLimitExceeded,
			Severity: models.SeverityWarning,
			UserID:   c.GetString(util.ContextUserIDKey),
			Details: map[string]interface{}{
				"limiter": rl.config.Name,
				"key":     key,
				"method":  c.Request.Method,
			},
		}))
	}

	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Burst))
	c.Header("X-RateLimit-Remaining", "0")
	util.RespondWithAPIError(c, errors.RateLimited(fmt.Sprintf("rate limit exceeded, retry in %ds", seconds)))
}

// Cleanup drops buckets idle for longer than idle
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx ends
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Cleanup(idle); n > 0 {
					logger.Log.Debug("Pruned idle rate limiters", zap.String("limiter", rl.config.Name), zap.Int("removed", n))
				}
			}
		}
	}()
}

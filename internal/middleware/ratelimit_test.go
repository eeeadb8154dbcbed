package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/cache"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	internaltest "github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Handler())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func get(router http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBurstThenReject(t *testing.T) {
	db := internaltest.NewDB(t)
	recorder := security.NewRecorder(db)
	violations := NewViolationLog(10)
	rl := NewRateLimiter(RateLimitConfig{Name: "general", RPS: 0.001, Burst: 3}, nil, recorder, violations)
	router := newLimitedRouter(rl)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(router, "10.0.0.1").Code, "request %d", i+1)
	}

	w := get(router, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.2").Code)

	// a second rejection in the same minute is counted but not audited again
	get(router, "10.0.0.1")
	recent := violations.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "10.0.0.1", recent[0].Key)
	assert.Equal(t, 2, recent[0].Count)

	events, total, err := recorder.List(context.Background(), security.Filter{Type: string(models.EventRateLimitExceeded)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "10.0.0.1", events[0].IP)

	assert.Equal(t, 2, rl.TrackedClients(context.Background()))
	assert.Equal(t, BackendMemory, rl.Backend())
}

func TestRateLimiterKeyFunc(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Name: "general", RPS: 0.001, Burst: 1}, nil, nil, nil)
	rl.SetKeyFunc(func(c *gin.Context) string {
		return c.GetHeader("X-User")
	})
	router := newLimitedRouter(rl)

	asUser := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if user != "" {
			req.Header.Set("X-User", user)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	// users behind one address get their own buckets
	assert.Equal(t, http.StatusOK, asUser("u1"))
	assert.Equal(t, http.StatusTooManyRequests, asUser("u1"))
	assert.Equal(t, http.StatusOK, asUser("u2"))

	// anonymous requests fall back to the IP
	assert.Equal(t, http.StatusOK, asUser(""))
	assert.Equal(t, http.StatusTooManyRequests, asUser(""))
	assert.Equal(t, 3, rl.TrackedClients(context.Background()))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Name: "general", RPS: 10, Burst: 10}, nil, nil, nil)
	rl.Allow(context.Background(), "a")
	rl.Allow(context.Background(), "b")

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 2, rl.Cleanup(-time.Second))
	assert.Equal(t, 0, rl.TrackedClients(context.Background()))
}

func TestRateLimiterRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	cfg := RateLimitConfig{Name: "auth", RPS: 0, Burst: 2}
	a := NewRateLimiter(cfg, rc, nil, nil)
	b := NewRateLimiter(cfg, rc, nil, nil)
	assert.Equal(t, BackendRedis, a.Backend())

	ctx := context.Background()
	ok, _ := a.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
	ok, _ = b.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)

	// the budget is shared between instances
	ok, retry := a.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	ok, _ = b.Allow(ctx, "9.9.9.9")
	assert.True(t, ok)
	assert.Equal(t, 2, a.TrackedClients(ctx))
	assert.Equal(t, 2, b.TrackedClients(ctx))
	assert.Equal(t, 0, NewRateLimiter(RateLimitConfig{Name: "general", Burst: 1}, rc, nil, nil).TrackedClients(ctx))

	// redis down falls back to memory buckets
	mr.Close()
	ok, _ = a.Allow(ctx, "5.6.7.8")
	assert.True(t, ok)
	assert.Equal(t, 1, a.TrackedClients(ctx))
}

func TestViolationLogEvictsOldest(t *testing.T) {
	log := NewViolationLog(2)
	base := time.Now()
	assert.True(t, log.Add("a", "/x", base))
	log.Add("b", "/x", base.Add(time.Second))
	log.Add("c", "/x", base.Add(2*time.Second))

	recent := log.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Key)
	assert.Equal(t, "b", recent[1].Key)

	assert.False(t, log.Add("c", "/x", base.Add(3*time.Second)))
	assert.True(t, log.Add("c", "/x", base.Add(2*time.Minute)))
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/auth"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/authz"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/cache"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/config"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/database"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/handlers"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/middleware"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/search"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/storage"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/telemetry"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== KhoshGolpo server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	metrics.Initialize()

	// Tracing is optional; the provider is nil when disabled
	tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
		ServiceName:  telemetry.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
		Enabled:      cfg.OTelEnabled,
		SamplingRate: cfg.OTelSamplingRate,
	})
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}

	// Initialize database
	if err := database.Initialize(cfg.DatabaseURL, !cfg.IsProduction() && cfg.LogLevel == "debug"); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if tp != nil {
		if err := database.DB.Use(telemetry.GORMTracingPlugin()); err != nil {
			logger.Log.Warn("Failed to install GORM tracing plugin", zap.Error(err))
		}
	}

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}
	db := database.DB

	// Redis is optional: without it rate limits are per instance and analytics are uncached
	var redisClient *cache.RedisClient
	if cfg.RedisEnabled() {
		redisClient, err = cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.Log.Warn("Redis unavailable, continuing without it", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	enforcer, err := authz.NewEnforcer(cfg.AuthzPolicyPath)
	if err != nil {
		logger.Log.Fatal("Failed to load authorization policy", zap.Error(err))
	}

	recorder := security.NewRecorder(db)
	authService := auth.NewService(
		auth.Config{
			JWTSecret:       []byte(cfg.JWTSecret),
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		},
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		recorder,
	)

	// Initialize WebSocket hub and handler
	wsHub := websocket.NewHub()
	go wsHub.Run()
	wsHandler := websocket.NewHandler(wsHub, authService, websocketOrigins(cfg.CORSOrigins))

	var dispatcher *notifications.Dispatcher
	if cfg.NotificationWebhookURL != "" {
		dispatcher = notifications.NewDispatcher(cfg.NotificationWebhookURL, notifications.DispatcherOptions{})
		logger.Log.Info("Notification webhook enabled", zap.String("url", cfg.NotificationWebhookURL))
	}
	notifier := notifications.NewService(db, wsHub, dispatcher)

	h := handlers.NewHandlers(db, authService, notifier, recorder)
	h.SetEventBroadcaster(wsHub)
	if redisClient != nil {
		h.SetCache(redisClient)
	}

	if cfg.ElasticsearchURL != "" {
		if searchClient := initSearch(cfg.ElasticsearchURL, db); searchClient != nil {
			h.SetSearchClient(searchClient)
		}
	}

	if cfg.StorageEnabled() {
		uploader, err := storage.NewS3Uploader(context.Background(), cfg.AWSRegion, cfg.AWSBucket, cfg.CDNBaseURL)
		if err != nil {
			logger.Log.Warn("Failed to initialize S3 uploader, avatar uploads disabled", zap.Error(err))
		} else {
			if err := uploader.CheckBucketAccess(context.Background()); err != nil {
				logger.Log.Warn("S3 bucket access check failed", zap.Error(err))
			}
			h.SetAvatarUploader(uploader)
		}
	}

	violations := middleware.NewViolationLog(0)
	generalLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Name: "general", RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst,
	}, redisClient, recorder, violations)
	authLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Name: "auth", RPS: cfg.AuthRateLimitRPS, Burst: cfg.AuthRateLimitBurst,
	}, redisClient, recorder, violations)
	// the general limiter runs before route auth, so it reads the user from the token itself
	generalLimiter.SetKeyFunc(authService.TokenSubject)
	h.SetRateLimiters(generalLimiter, authLimiter, violations)

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	generalLimiter.StartCleanup(cleanupCtx, time.Minute, 10*time.Minute)
	authLimiter.StartCleanup(cleanupCtx, time.Minute, 10*time.Minute)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	if tp != nil {
		r.Use(middleware.TracingMiddleware(telemetry.ServiceName))
	}
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))
	r.Use(generalLimiter.Handler())

	h.RegisterRoutes(r, handlers.RouteMiddleware{
		RequireAuth:   authService.Middleware(),
		OptionalAuth:  authService.OptionalMiddleware(),
		Authz:         enforcer,
		AuthRateLimit: authLimiter.Handler(),
		WebSocket:     wsHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown WebSocket connections gracefully
	if err := wsHandler.Shutdown(ctx); err != nil {
		logger.Log.Warn("WebSocket shutdown error", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if dispatcher != nil {
		if err := dispatcher.Stop(ctx); err != nil {
			logger.Log.Warn("Webhook dispatcher did not drain", zap.Error(err))
		}
	}
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Log.Warn("Tracer shutdown error", zap.Error(err))
		}
	}

	logger.Log.Info("Server exited")
}

// initSearch connects to Elasticsearch and backfills a freshly created index.
// Returns nil when search is unavailable; thread listing then uses the database.
func initSearch(url string, db *gorm.DB) *search.Client {
	client, err := search.NewClient(url)
	if err != nil {
		logger.Log.Warn("Elasticsearch client init failed, search uses the database", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	created, err := client.EnsureIndex(ctx)
	if err != nil {
		logger.Log.Warn("Elasticsearch unavailable, search uses the database", zap.Error(err))
		return nil
	}
	if created {
		go func() {
			if _, err := search.Reindex(context.Background(), db, client); err != nil {
				logger.Log.Warn("Thread backfill failed", zap.Error(err))
			}
		}()
	}
	logger.Log.Info("Elasticsearch search enabled", zap.String("url", url))
	return client
}

// websocketOrigins turns CORS origins into host patterns for the upgrade check
func websocketOrigins(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		patterns = append(patterns, o)
	}
	return patterns
}

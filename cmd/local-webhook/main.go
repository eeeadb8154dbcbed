// Command local-webhook echoes webhook deliveries to the console so the
// notification webhook can be tried without a real receiver.
package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
)

const (
	defaultPort = "4000"
	defaultPath = "/webhook"

	maxBodyBytes = 1 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	_ = godotenv.Load()
	if err := logger.Initialize(envOr("LOG_LEVEL", "info"), "-"); err != nil {
		panic(err)
	}
	defer logger.Close()

	port := envOr("LOCAL_WEBHOOK_PORT", defaultPort)
	path := normalizePath(os.Getenv("LOCAL_WEBHOOK_PATH"))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(path, logger.Log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Log.Info("Local webhook listening",
			zap.String("url", "http://localhost:"+port+path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Local webhook failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	_ = srv.Close()
}

func newRouter(path string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Any(path, func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": err.Error()})
			return
		}

		log.Info("Webhook received",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.RequestURI()),
			zap.Strings("headers", headerLines(c.Request.Header)),
		)
		if len(body) > 0 {
			log.Info("Webhook body\n" + prettyBody(body))
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// prettyBody indents JSON bodies and returns anything else as sent
func prettyBody(body []byte) string {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(out)
}

func headerLines(h http.Header) []string {
	lines := make([]string, 0, len(h))
	for name, values := range h {
		lines = append(lines, name+": "+strings.Join(values, ", "))
	}
	sort.Strings(lines)
	return lines
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

type healthIndicator struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                     `json:"status"`
	Info      map[string]healthIndicator `json:"info"`
	Error     map[string]healthIndicator `json:"error"`
	Details   map[string]healthIndicator `json:"details"`
	Timestamp time.Time                  `json:"timestamp"`
}

// Health pings the database and, when configured, Redis. Any failing check
// makes the response 503.
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Info:      map[string]healthIndicator{},
		Error:     map[string]healthIndicator{},
		Details:   map[string]healthIndicator{},
		Timestamp: time.Now().UTC(),
	}

	check := func(name string, ping func(context.Context) error) {
		indicator := healthIndicator{Status: "up"}
		if err := ping(ctx); err != nil {
			indicator = healthIndicator{Status: "down", Message: err.Error()}
			resp.Error[name] = indicator
			resp.Status = "error"
		} else {
			resp.Info[name] = indicator
		}
		resp.Details[name] = indicator
	}

	check("database", h.pingDatabase)
	if h.cache != nil {
		check("redis", h.cache.Ping)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *Handlers) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

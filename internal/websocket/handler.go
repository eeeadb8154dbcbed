package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/auth"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler upgrades authenticated HTTP requests to websocket connections
type Handler struct {
	hub            *Hub
	authenticator  auth.Authenticator
	originPatterns []string
}

// NewHandler creates a new websocket handler. originPatterns are host
// patterns accepted in the Origin header; empty means same-origin only.
func NewHandler(hub *Hub, authenticator auth.Authenticator, originPatterns []string) *Handler {
	return &Handler{hub: hub, authenticator: authenticator, originPatterns: originPatterns}
}

// HandleWebSocket upgrades the connection.
// Token comes from ?token=... or the Authorization header.
// GET /ws
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := auth.BearerToken(c, true)
	if token == "" {
		util.RespondUnauthorized(c, "missing token")
		return
	}

	user, err := h.authenticator.Authenticate(c.Request.Context(), token)
	if err != nil {
		logger.Log.Debug("WebSocket auth failed", zap.Error(err), logger.WithIP(c.ClientIP()))
		util.RespondUnauthorized(c, "invalid token")
		return
	}
	if !user.IsActive() {
		util.RespondForbidden(c, "account is "+string(user.Status))
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.Error(err), logger.WithIP(c.ClientIP()))
		return
	}

	client := NewClient(h.hub, conn, user.ID, user.Username)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Register(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event:   "connected",
		Message: "Welcome to KhoshGolpo",
		Data: map[string]interface{}{
			"user_id":     user.ID,
			"username":    user.Username,
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump()
}

// HandleStats returns hub counters
// GET /ws/stats
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.GetStats())
}

// Shutdown stops the hub
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// Hub returns the underlying hub
func (h *Handler) Hub() *Hub {
	return h.hub
}

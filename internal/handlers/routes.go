package handlers

import (
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/authz"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteMiddleware carries the per-group middleware the route table needs
type RouteMiddleware struct {
	RequireAuth  gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	Authz        *authz.Enforcer
	// AuthRateLimit guards the credential endpoints; optional
	AuthRateLimit gin.HandlerFunc
	// WebSocket is optional; without it /ws is not registered
	WebSocket *websocket.Handler
}

// RegisterRoutes mounts the whole API on r
func (h *Handlers) RegisterRoutes(r gin.IRouter, mw RouteMiddleware) {
	requireAuth := mw.RequireAuth
	optionalAuth := mw.OptionalAuth
	can := mw.Authz.RequirePermission

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	{
		credentials := authGroup.Group("")
		if mw.AuthRateLimit != nil {
			credentials.Use(mw.AuthRateLimit)
		}
		credentials.POST("/register", h.Register)
		credentials.POST("/login", h.Login)
		credentials.POST("/refresh", h.Refresh)
		credentials.POST("/logout", h.Logout)

		authGroup.GET("/me", requireAuth, h.Me)
	}

	threads := r.Group("/threads")
	{
		threads.GET("", optionalAuth, h.ListThreads)
		threads.GET("/:id", optionalAuth, h.GetThread)
		threads.POST("", requireAuth, can(authz.ObjThread, authz.ActCreate), h.CreateThread)
		threads.POST("/:id/posts", requireAuth, can(authz.ObjPost, authz.ActCreate), h.CreatePost)
		threads.PATCH("/:id/moderation", requireAuth, can(authz.ObjThread, authz.ActModerate), h.ModerateThread)
	}

	r.PATCH("/posts/:id/moderation", requireAuth, can(authz.ObjPost, authz.ActModerate), h.ModeratePost)

	users := r.Group("/users")
	{
		users.GET("/:username", h.GetUserProfile)
		users.PATCH("/me", requireAuth, can(authz.ObjProfile, authz.ActUpdate), h.UpdateMyProfile)
		users.POST("/me/avatar", requireAuth, can(authz.ObjProfile, authz.ActUpdate), h.UploadAvatar)
	}

	notifications := r.Group("/notifications")
	notifications.Use(requireAuth, can(authz.ObjNotification, authz.ActRead))
	{
		notifications.GET("", h.GetNotifications)
		notifications.PATCH("", h.MarkNotifications)
		notifications.PATCH("/:id", h.MarkNotification)
	}

	admin := r.Group("/admin")
	admin.Use(requireAuth)
	{
		admin.GET("/users", can(authz.ObjAdminUsers, authz.ActRead), h.AdminListUsers)
		admin.GET("/users/:id", can(authz.ObjAdminUsers, authz.ActRead), h.AdminGetUser)
		admin.PATCH("/users/:id", can(authz.ObjAdminUsers, authz.ActWrite), h.AdminUpdateUser)

		admin.GET("/security/events", can(authz.ObjAdminSecurity, authz.ActRead), h.SecurityEvents)
		admin.GET("/security/rate-limit", can(authz.ObjAdminSecurity, authz.ActRead), h.RateLimitStatus)

		admin.GET("/analytics/overview", can(authz.ObjAdminAnalytics, authz.ActRead), h.AnalyticsOverviewHandler)
	}

	if mw.WebSocket != nil {
		r.GET("/ws", mw.WebSocket.HandleWebSocket)
		admin.GET("/realtime/stats", can(authz.ObjAdminAnalytics, authz.ActRead), mw.WebSocket.HandleStats)
	}
}

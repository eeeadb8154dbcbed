package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/dto"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/middleware"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const recentViolationsLimit = 20

// AdminListUsers searches accounts.
// GET /admin/users?q&role&status&limit&offset
func (h *Handlers) AdminListUsers(c *gin.Context) {
	page := util.ParsePagination(c)

	role := strings.TrimSpace(c.Query("role"))
	if role != "" && !models.Role(role).Valid() {
		util.RespondValidationError(c, "role", "must be one of member, moderator, admin")
		return
	}
	status := strings.TrimSpace(c.Query("status"))
	if status != "" && !models.UserStatus(status).Valid() {
		util.RespondValidationError(c, "status", "must be one of active, suspended, banned")
		return
	}

	users, total, err := h.users.ListUsers(c.Request.Context(), repository.UserFilter{
		Query:  c.Query("q"),
		Role:   role,
		Status: status,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		logger.ErrorWithFields("Failed to list users", err)
		util.RespondInternalError(c, "failed to list users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": dto.ToUserPrivateList(users),
		"meta":  page.Meta(total),
	})
}

// AdminGetUser returns one account with activity counters
func (h *Handlers) AdminGetUser(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.users.GetUser(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrUserNotFound) {
		util.RespondNotFound(c, "user")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load user")
		return
	}

	sessions, err := h.auth.ActiveSessions(ctx, user.ID)
	if err != nil {
		logger.WarnWithFields("Failed to count sessions", err, logger.WithUserID(user.ID))
	}

	c.JSON(http.StatusOK, gin.H{
		"user": dto.ToUserPrivate(user),
		"stats": gin.H{
			"threads":         user.ThreadCount,
			"posts":           user.PostCount,
			"sessions_active": sessions,
		},
	})
}

// AdminUpdateUser changes role and/or status.
// PATCH /admin/users/:id
func (h *Handlers) AdminUpdateUser(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.AdminUpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Role == nil && req.Status == nil {
		util.RespondValidationError(c, "role", "provide role or status")
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		util.RespondValidationError(c, "role", "must be one of member, moderator, admin")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		util.RespondValidationError(c, "status", "must be one of active, suspended, banned")
		return
	}

	ctx := c.Request.Context()
	target, err := h.users.GetUser(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrUserNotFound) {
		util.RespondNotFound(c, "user")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load user")
		return
	}

	if target.ID == admin.ID {
		if req.Role != nil && *req.Role != admin.Role {
			util.RespondConflict(c, "you cannot change your own role")
			return
		}
		if req.Status != nil && *req.Status != models.UserStatusActive {
			util.RespondConflict(c, "you cannot disable your own account")
			return
		}
	}

	fields := make(map[string]interface{})
	roleChanged := req.Role != nil && *req.Role != target.Role
	statusChanged := req.Status != nil && *req.Status != target.Status
	if roleChanged {
		fields["role"] = *req.Role
	}
	if statusChanged {
		fields["status"] = *req.Status
	}

	if len(fields) > 0 {
		if err := h.users.UpdateFields(ctx, target.ID, fields); err != nil {
			logger.ErrorWithFields("Failed to update user", err, logger.WithUserID(target.ID))
			util.RespondInternalError(c, "failed to update user")
			return
		}
	}

	if roleChanged {
		h.recorder.Record(ctx, security.FromRequest(c, security.Event{
			Type:     models.EventRoleChanged,
			Severity: models.SeverityWarning,
			UserID:   target.ID,
			ActorID:  admin.ID,
			Details: map[string]interface{}{
				"from":   string(target.Role),
				"to":     string(*req.Role),
				"reason": req.Reason,
			},
		}))
		target.Role = *req.Role
	}

	if statusChanged {
		var revoked int64
		if *req.Status != models.UserStatusActive {
			revoked, err = h.auth.RevokeAllSessions(ctx, target.ID)
			if err != nil {
				logger.ErrorWithFields("Failed to revoke sessions", err, logger.WithUserID(target.ID))
			}
		}
		severity := models.SeverityWarning
		if *req.Status == models.UserStatusActive {
			severity = models.SeverityInfo
		}
		h.recorder.Record(ctx, security.FromRequest(c, security.Event{
			Type:     models.EventStatusChanged,
			Severity: severity,
			UserID:   target.ID,
			ActorID:  admin.ID,
			Details: map[string]interface{}{
				"from":             string(target.Status),
				"to":               string(*req.Status),
				"reason":           req.Reason,
				"sessions_revoked": revoked,
			},
		}))
		target.Status = *req.Status
	}

	logger.Log.Info("User updated by admin",
		logger.WithUserID(target.ID),
		zap.String("admin_id", admin.ID),
		zap.Bool("role_changed", roleChanged),
		zap.Bool("status_changed", statusChanged),
	)

	updated, err := h.users.GetUser(ctx, target.ID)
	if err != nil {
		updated = target
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.ToUserPrivate(updated)})
}

// SecurityEvents lists audit events newest first.
// GET /admin/security/events?type&severity&user_id&limit&offset
func (h *Handlers) SecurityEvents(c *gin.Context) {
	page := util.ParsePagination(c)
	filter := security.Filter{
		Type:     c.Query("type"),
		Severity: c.Query("severity"),
		UserID:   c.Query("user_id"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			util.RespondValidationError(c, "since", "must be an RFC3339 timestamp")
			return
		}
		filter.Since = &t
	}

	events, total, err := h.recorder.List(c.Request.Context(), filter)
	if err != nil {
		logger.ErrorWithFields("Failed to list security events", err)
		util.RespondInternalError(c, "failed to load security events")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"meta":   page.Meta(total),
	})
}

// RateLimitStatus reports limiter configuration and recent rejections.
// GET /admin/security/rate-limit
func (h *Handlers) RateLimitStatus(c *gin.Context) {
	resp := gin.H{
		"general":           limiterSummary(h.generalLimiter),
		"auth":              limiterSummary(h.authLimiter),
		"backend":           middleware.BackendMemory,
		"tracked_clients":   0,
		"recent_violations": []middleware.Violation{},
	}

	if h.generalLimiter != nil {
		resp["backend"] = h.generalLimiter.Backend()
		ctx := c.Request.Context()
		tracked := h.generalLimiter.TrackedClients(ctx)
		if h.authLimiter != nil {
			tracked += h.authLimiter.TrackedClients(ctx)
		}
		resp["tracked_clients"] = tracked
	}
	if h.violations != nil {
		resp["recent_violations"] = h.violations.Recent(recentViolationsLimit)
	}

	c.JSON(http.StatusOK, resp)
}

func limiterSummary(rl *middleware.RateLimiter) middleware.RateLimitConfig {
	if rl == nil {
		return middleware.RateLimitConfig{}
	}
	return rl.Config()
}

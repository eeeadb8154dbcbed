package handlers

import (
	"errors"
	"net/http"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/dto"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
)

type notificationsMeta struct {
	util.Meta
	Unread int64 `json:"unread"`
}

// GetNotifications lists the caller's notifications, newest first.
// GET /notifications?limit&offset&unread=true
func (h *Handlers) GetNotifications(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	page := util.ParsePagination(c)
	unreadOnly := c.Query("unread") == "true"

	items, total, unread, err := h.notifier.List(c.Request.Context(), user.ID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		logger.ErrorWithFields("Failed to list notifications", err, logger.WithUserID(user.ID))
		util.RespondInternalError(c, "failed to load notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"meta":          notificationsMeta{Meta: page.Meta(total), Unread: unread},
	})
}

// MarkNotifications marks the listed notifications, or all of them, as read.
// PATCH /notifications
func (h *Handlers) MarkNotifications(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.MarkNotificationsRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.All == (len(req.IDs) > 0) {
		util.RespondValidationError(c, "ids", "provide either ids or all, not both")
		return
	}

	ctx := c.Request.Context()
	var updated int64
	var err error
	if req.All {
		updated, err = h.notifier.MarkAllRead(ctx, user.ID)
	} else {
		updated, err = h.notifier.MarkRead(ctx, user.ID, req.IDs)
	}
	if err != nil {
		logger.ErrorWithFields("Failed to mark notifications", err, logger.WithUserID(user.ID))
		util.RespondInternalError(c, "failed to update notifications")
		return
	}

	unread, err := h.notifier.UnreadCount(ctx, user.ID)
	if err != nil {
		util.RespondInternalError(c, "failed to count notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "unread": unread})
}

// MarkNotification marks one of the caller's notifications as read.
// PATCH /notifications/:id
func (h *Handlers) MarkNotification(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	n, err := h.notifier.MarkOne(ctx, user.ID, c.Param("id"))
	if errors.Is(err, notifications.ErrNotFound) {
		util.RespondNotFound(c, "notification")
		return
	}
	if err != nil {
		logger.ErrorWithFields("Failed to mark notification", err, logger.WithUserID(user.ID))
		util.RespondInternalError(c, "failed to update notification")
		return
	}

	unread, err := h.notifier.UnreadCount(ctx, user.ID)
	if err != nil {
		util.RespondInternalError(c, "failed to count notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n, "unread": unread})
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/dto"
	apperrors "github.com/Avishekdevnath/KhoshGolpo-sub001/internal/errors"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/telemetry"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/websocket"
	"github.com/gin-gonic/gin"
)

// CreatePost replies to a thread, optionally under an existing post.
// POST /threads/:id/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		util.RespondValidationError(c, "body", "is required")
		return
	}

	ctx := c.Request.Context()
	thread, err := h.threads.GetThread(ctx, c.Param("id"))
	if err != nil {
		respondThreadError(c, err)
		return
	}
	if !thread.AcceptsPosts() {
		util.RespondWithAPIError(c, apperrors.Locked(fmt.Sprintf("thread is %s", thread.Status)))
		return
	}

	// replies to replies hang off the top-level post
	var parent *models.Post
	var parentID *string
	if req.ParentPostID != nil && *req.ParentPostID != "" {
		parent, err = h.threads.GetPost(ctx, *req.ParentPostID)
		if errors.Is(err, repository.ErrPostNotFound) || (err == nil && parent.ThreadID != thread.ID) {
			util.RespondValidationError(c, "parent_post_id", "parent post does not belong to this thread")
			return
		}
		if err != nil {
			respondThreadError(c, err)
			return
		}
		top := parent.ID
		if parent.ParentPostID != nil && *parent.ParentPostID != "" {
			top = *parent.ParentPostID
		}
		parentID = &top
	}

	mentioned := h.resolveMentions(ctx, req.Body)
	post := &models.Post{
		ThreadID:     thread.ID,
		AuthorID:     user.ID,
		ParentPostID: parentID,
		Body:         req.Body,
		Mentions:     models.StringArray(usernames(mentioned)),
	}

	ctx, span := telemetry.Events().TraceCreatePost(ctx, thread.ID, parentID != nil)
	err = h.threads.CreatePost(ctx, post)
	telemetry.EndSpan(span, err)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrThreadNotFound):
			util.RespondNotFound(c, "thread")
			return
		case errors.Is(err, repository.ErrThreadClosed):
			util.RespondWithAPIError(c, apperrors.Locked("thread is no longer open"))
			return
		}
		logger.ErrorWithFields("Failed to create post", err, logger.WithThreadID(thread.ID), logger.WithUserID(user.ID))
		util.RespondInternalError(c, "failed to create post")
		return
	}
	post.Author = user

	metrics.Get().PostsCreatedTotal.Inc()
	logger.Log.Info("Post created",
		logger.WithPostID(post.ID),
		logger.WithThreadID(thread.ID),
		logger.WithUserID(user.ID),
	)

	resp := dto.ToPostResponse(post)
	h.broadcast(websocket.EventPostCreated, resp)

	thread.PostCount++
	thread.LastActivityAt = post.CreatedAt
	h.indexThread(thread)

	// first input per recipient wins, so order sets the notification type
	var inputs []notifications.Input
	if parent != nil {
		inputs = append(inputs, notifications.Input{
			UserID:   parent.AuthorID,
			ActorID:  user.ID,
			Type:     models.NotificationPostReply,
			Title:    fmt.Sprintf("%s replied to your post", user.Username),
			Body:     util.Truncate(post.Body, 140),
			ThreadID: thread.ID,
			PostID:   post.ID,
			Data:     map[string]interface{}{"thread_title": thread.Title, "actor": user.Username},
		})
	}
	inputs = append(inputs, notifications.Input{
		UserID:   thread.AuthorID,
		ActorID:  user.ID,
		Type:     models.NotificationThreadReply,
		Title:    fmt.Sprintf("%s replied to your thread", user.Username),
		Body:     util.Truncate(post.Body, 140),
		ThreadID: thread.ID,
		PostID:   post.ID,
		Data:     map[string]interface{}{"thread_title": thread.Title, "actor": user.Username},
	})
	inputs = append(inputs, mentionInputs(user, mentioned, thread, post)...)
	h.notify(ctx, inputs)

	c.JSON(http.StatusCreated, gin.H{"post": resp})
}

// ModeratePost hides or restores a post.
// PATCH /posts/:id/moderation
func (h *Handlers) ModeratePost(c *gin.Context) {
	moderator, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.ModerationRequest
	if !bindJSON(c, &req) {
		return
	}
	status := models.PostStatus(req.Status)
	if !status.Valid() {
		util.RespondValidationError(c, "status", "must be one of visible, hidden")
		return
	}

	ctx := c.Request.Context()
	post, err := h.threads.GetPost(ctx, c.Param("id"))
	if err != nil {
		respondThreadError(c, err)
		return
	}
	previous := post.Status

	ctx, span := telemetry.Events().TraceModeration(ctx, "post", post.ID, string(status))
	err = h.threads.UpdatePostStatus(ctx, post.ID, status)
	telemetry.EndSpan(span, err)
	if err != nil {
		respondThreadError(c, err)
		return
	}
	post.Status = status

	metrics.Get().ModerationActionsTotal.WithLabelValues("post", string(status)).Inc()
	h.recorder.Record(ctx, security.FromRequest(c, security.Event{
		Type:    models.EventPostStatusModified,
		UserID:  post.AuthorID,
		ActorID: moderator.ID,
		Details: map[string]interface{}{
			"post_id":   post.ID,
			"thread_id": post.ThreadID,
			"from":      string(previous),
			"to":        string(status),
			"reason":    req.Reason,
		},
	}))

	h.notify(ctx, []notifications.Input{{
		UserID:   post.AuthorID,
		ActorID:  moderator.ID,
		Type:     models.NotificationModeration,
		Title:    fmt.Sprintf("Your post was marked %s", status),
		Body:     moderationBody(post.Body, req.Reason),
		ThreadID: post.ThreadID,
		PostID:   post.ID,
		Data: map[string]interface{}{
			"target": "post",
			"status": string(status),
			"reason": req.Reason,
		},
	}})

	c.JSON(http.StatusOK, gin.H{"post": dto.ToPostResponse(post)})
}

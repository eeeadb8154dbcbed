package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/dto"
	apperrors "github.com/Avishekdevnath/KhoshGolpo-sub001/internal/errors"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/search"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/telemetry"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const searchIndexTimeout = 5 * time.Second

// ListThreads returns threads by most recent activity.
// GET /threads?limit&offset&tag&author&q&status
func (h *Handlers) ListThreads(c *gin.Context) {
	page := util.ParsePagination(c)

	status := strings.TrimSpace(c.Query("status"))
	if status != "" && !models.ThreadStatus(status).Valid() {
		util.RespondValidationError(c, "status", "must be one of open, locked, archived")
		return
	}

	filter := repository.ThreadFilter{
		Tag:            strings.ToLower(strings.TrimSpace(c.Query("tag"))),
		AuthorUsername: strings.TrimSpace(c.Query("author")),
		Query:          strings.TrimSpace(c.Query("q")),
		Status:         status,
		Limit:          page.Limit,
		Offset:         page.Offset,
	}

	ctx := c.Request.Context()
	if filter.Query != "" && filter.AuthorUsername == "" && h.search != nil {
		threads, total, err := h.searchThreads(ctx, filter)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{
				"threads": dto.ToThreadResponses(threads),
				"meta":    page.Meta(total),
			})
			return
		}
		logger.WarnWithFields("Thread search failed, falling back to database", err)
	}

	if filter.Query != "" {
		metrics.Get().SearchQueriesTotal.WithLabelValues("database").Inc()
	}

	threads, total, err := h.threads.ListThreads(ctx, filter)
	if err != nil {
		logger.ErrorWithFields("Failed to list threads", err)
		util.RespondInternalError(c, "failed to list threads")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threads": dto.ToThreadResponses(threads),
		"meta":    page.Meta(total),
	})
}

func (h *Handlers) searchThreads(ctx context.Context, filter repository.ThreadFilter) ([]*models.Thread, int64, error) {
	ctx, span := telemetry.Events().TraceSearch(ctx, "elasticsearch", filter.Query)
	result, err := h.search.SearchThreads(ctx, search.ThreadQuery{
		Query:  filter.Query,
		Tag:    filter.Tag,
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, 0, err
	}

	threads, err := h.threads.GetThreadsByIDs(ctx, result.IDs)
	if err != nil {
		return nil, 0, err
	}
	return threads, result.Total, nil
}

// CreateThread opens a new thread.
// POST /threads
func (h *Handlers) CreateThread(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.CreateThreadRequest
	if !bindJSON(c, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if n := utf8.RuneCountInString(title); n < dto.MinTitleLength || n > dto.MaxTitleLength {
		util.RespondValidationError(c, "title",
			fmt.Sprintf("must be between %d and %d characters", dto.MinTitleLength, dto.MaxTitleLength))
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		util.RespondValidationError(c, "body", "is required")
		return
	}

	tags := util.NormalizeTags(req.Tags)
	if len(tags) > dto.MaxTags {
		util.RespondValidationError(c, "tags", fmt.Sprintf("must have at most %d items", dto.MaxTags))
		return
	}
	for _, tag := range tags {
		if strings.Contains(tag, ",") {
			util.RespondValidationError(c, "tags", "tags may not contain commas")
			return
		}
	}

	thread := &models.Thread{
		AuthorID: user.ID,
		Title:    title,
		Body:     req.Body,
		Tags:     models.StringArray(tags),
	}

	ctx, span := telemetry.Events().TraceCreateThread(c.Request.Context(), user.ID, tags)
	err := h.threads.CreateThread(ctx, thread)
	telemetry.EndSpan(span, err)
	if err != nil {
		logger.ErrorWithFields("Failed to create thread", err, logger.WithUserID(user.ID))
		util.RespondInternalError(c, "failed to create thread")
		return
	}
	thread.Author = user

	metrics.Get().ThreadsCreatedTotal.Inc()
	logger.Log.Info("Thread created",
		logger.WithThreadID(thread.ID),
		logger.WithUserID(user.ID),
		zap.Strings("tags", tags),
	)

	resp := dto.ToThreadResponse(thread)
	h.broadcast(websocket.EventThreadCreated, resp)
	h.indexThread(thread)

	h.notify(ctx, mentionInputs(user, h.resolveMentions(ctx, thread.Body), thread, nil))

	c.JSON(http.StatusCreated, gin.H{"thread": resp})
}

// GetThread returns a thread with one page of its posts.
// GET /threads/:id?limit&offset
func (h *Handlers) GetThread(c *gin.Context) {
	ctx := c.Request.Context()
	thread, err := h.threads.GetThread(ctx, c.Param("id"))
	if err != nil {
		respondThreadError(c, err)
		return
	}

	page := util.ParsePagination(c)
	filter := repository.PostFilter{ThreadID: thread.ID, Limit: page.Limit, Offset: page.Offset}
	if viewer := util.OptionalUser(c); viewer != nil {
		filter.ViewerID = viewer.ID
		filter.IncludeAll = viewer.Role.IsStaff()
	}

	posts, total, err := h.threads.ListPosts(ctx, filter)
	if err != nil {
		logger.ErrorWithFields("Failed to list posts", err, logger.WithThreadID(thread.ID))
		util.RespondInternalError(c, "failed to load posts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread": dto.ToThreadResponse(thread),
		"posts":  dto.ToPostResponses(posts),
		"meta":   page.Meta(total),
	})
}

// ModerateThread changes a thread's status and tells its author.
// PATCH /threads/:id/moderation
func (h *Handlers) ModerateThread(c *gin.Context) {
	moderator, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.ModerationRequest
	if !bindJSON(c, &req) {
		return
	}
	status := models.ThreadStatus(req.Status)
	if !status.Valid() {
		util.RespondValidationError(c, "status", "must be one of open, locked, archived")
		return
	}

	ctx := c.Request.Context()
	thread, err := h.threads.GetThread(ctx, c.Param("id"))
	if err != nil {
		respondThreadError(c, err)
		return
	}
	previous := thread.Status

	ctx, span := telemetry.Events().TraceModeration(ctx, "thread", thread.ID, string(status))
	err = h.threads.UpdateThreadStatus(ctx, thread.ID, status)
	telemetry.EndSpan(span, err)
	if err != nil {
		respondThreadError(c, err)
		return
	}
	thread.Status = status

	metrics.Get().ModerationActionsTotal.WithLabelValues("thread", string(status)).Inc()
	h.recorder.Record(ctx, security.FromRequest(c, security.Event{
		Type:    models.EventThreadStatusModified,
		UserID:  thread.AuthorID,
		ActorID: moderator.ID,
		Details: map[string]interface{}{
			"thread_id": thread.ID,
			"from":      string(previous),
			"to":        string(status),
			"reason":    req.Reason,
		},
	}))

	h.notify(ctx, []notifications.Input{{
		UserID:   thread.AuthorID,
		ActorID:  moderator.ID,
		Type:     models.NotificationModeration,
		Title:    fmt.Sprintf("Your thread was marked %s", status),
		Body:     moderationBody(thread.Title, req.Reason),
		ThreadID: thread.ID,
		Data: map[string]interface{}{
			"target": "thread",
			"status": string(status),
			"reason": req.Reason,
		},
	}})
	h.indexThread(thread)

	c.JSON(http.StatusOK, gin.H{"thread": dto.ToThreadResponse(thread)})
}

func moderationBody(subject, reason string) string {
	subject = util.Truncate(subject, 80)
	if reason == "" {
		return subject
	}
	return subject + ": " + reason
}

func respondThreadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrThreadNotFound):
		util.RespondNotFound(c, "thread")
	case errors.Is(err, repository.ErrPostNotFound):
		util.RespondNotFound(c, "post")
	default:
		logger.ErrorWithFields("Thread operation failed", err)
		util.RespondWithAPIError(c, apperrors.InternalError("failed to process request"))
	}
}

// indexThread pushes the thread to search in the background. Search is an
// optional accelerator; failures only get logged.
func (h *Handlers) indexThread(thread *models.Thread) {
	if h.search == nil {
		return
	}
	snapshot := *thread
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), searchIndexTimeout)
		defer cancel()
		if err := h.search.IndexThread(ctx, &snapshot); err != nil {
			logger.WarnWithFields("Failed to index thread", err, logger.WithThreadID(snapshot.ID))
		}
	}()
}

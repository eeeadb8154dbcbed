package dto

import (
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
)

const (
	MaxTags        = 5
	MinTitleLength = 3
	MaxTitleLength = 200
)

type CreateThreadRequest struct {
	Title string   `json:"title" binding:"required,min=3,max=200"`
	Body  string   `json:"body" binding:"required,min=1,max=20000"`
	Tags  []string `json:"tags" binding:"max=5,dive,max=32"`
}

type CreatePostRequest struct {
	Body         string  `json:"body" binding:"required,min=1,max=10000"`
	ParentPostID *string `json:"parent_post_id"`
}

// ModerationRequest changes a thread or post status
type ModerationRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

// MarkNotificationsRequest marks either the listed notifications or all of them
type MarkNotificationsRequest struct {
	IDs []string `json:"ids" binding:"max=100"`
	All bool     `json:"all"`
}

type ThreadResponse struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Body           string              `json:"body"`
	Tags           []string            `json:"tags"`
	Status         models.ThreadStatus `json:"status"`
	PostCount      int                 `json:"post_count"`
	LastActivityAt time.Time           `json:"last_activity_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Author         *UserSummary        `json:"author,omitempty"`
	AuthorID       string              `json:"author_id"`
}

type PostResponse struct {
	ID           string            `json:"id"`
	ThreadID     string            `json:"thread_id"`
	ParentPostID *string           `json:"parent_post_id,omitempty"`
	Body         string            `json:"body"`
	Status       models.PostStatus `json:"status"`
	Mentions     []string          `json:"mentions"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Author       *UserSummary      `json:"author,omitempty"`
	AuthorID     string            `json:"author_id"`
}

func ToThreadResponse(t *models.Thread) *ThreadResponse {
	if t == nil {
		return nil
	}
	tags := []string(t.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &ThreadResponse{
		ID:             t.ID,
		Title:          t.Title,
		Body:           t.Body,
		Tags:           tags,
		Status:         t.Status,
		PostCount:      t.PostCount,
		LastActivityAt: t.LastActivityAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Author:         ToUserSummary(t.Author),
		AuthorID:       t.AuthorID,
	}
}

func ToThreadResponses(threads []*models.Thread) []*ThreadResponse {
	out := make([]*ThreadResponse, 0, len(threads))
	for _, t := range threads {
		out = append(out, ToThreadResponse(t))
	}
	return out
}

func ToPostResponse(p *models.Post) *PostResponse {
	if p == nil {
		return nil
	}
	mentions := []string(p.Mentions)
	if mentions == nil {
		mentions = []string{}
	}
	return &PostResponse{
		ID:           p.ID,
		ThreadID:     p.ThreadID,
		ParentPostID: p.ParentPostID,
		Body:         p.Body,
		Status:       p.Status,
		Mentions:     mentions,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Author:       ToUserSummary(p.Author),
		AuthorID:     p.AuthorID,
	}
}

func ToPostResponses(posts []*models.Post) []*PostResponse {
	out := make([]*PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, ToPostResponse(p))
	}
	return out
}

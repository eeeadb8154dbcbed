package search

import (
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
)

// ThreadDoc is the indexed form of a thread
type ThreadDoc struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	Username       string    `json:"username,omitempty"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Tags           []string  `json:"tags"`
	Status         string    `json:"status"`
	PostCount      int       `json:"post_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// ThreadToDoc converts a thread to its search document
func ThreadToDoc(t *models.Thread) ThreadDoc {
	doc := ThreadDoc{
		ID:             t.ID,
		AuthorID:       t.AuthorID,
		Title:          t.Title,
		Body:           t.Body,
		Tags:           []string(t.Tags),
		Status:         string(t.Status),
		PostCount:      t.PostCount,
		LastActivityAt: t.LastActivityAt,
		CreatedAt:      t.CreatedAt,
	}
	if t.Author != nil {
		doc.Username = t.Author.Username
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return doc
}

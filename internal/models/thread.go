package models

import (
	"time"

	"gorm.io/gorm"
)

// ThreadStatus gates whether a thread accepts new posts
type ThreadStatus string

const (
	ThreadStatusOpen     ThreadStatus = "open"
	ThreadStatusLocked   ThreadStatus = "locked"
	ThreadStatusArchived ThreadStatus = "archived"
)

func (s ThreadStatus) Valid() bool {
	switch s {
	case ThreadStatusOpen, ThreadStatusLocked, ThreadStatusArchived:
		return true
	}
	return false
}

// Thread is a discussion topic
type Thread struct {
	ID             string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID       string       `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author         *User        `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title          string       `gorm:"not null" json:"title"`
	Body           string       `gorm:"type:text;not null" json:"body"`
	Tags           StringArray  `gorm:"type:text" json:"tags"`
	Status         ThreadStatus `gorm:"type:varchar(16);default:open;index" json:"status"`
	PostCount      int          `gorm:"default:0" json:"post_count"`
	LastActivityAt time.Time    `gorm:"index" json:"last_activity_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Thread) TableName() string {
	return "threads"
}

// AcceptsPosts reports whether replies can be added
func (t *Thread) AcceptsPosts() bool {
	return t.Status == ThreadStatusOpen || t.Status == ""
}

func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = generateUUID()
	}
	if t.Status == "" {
		t.Status = ThreadStatusOpen
	}
	if t.LastActivityAt.IsZero() {
		t.LastActivityAt = time.Now().UTC()
	}
	return nil
}

// PostStatus is the moderation visibility of a post
type PostStatus string

const (
	PostStatusVisible PostStatus = "visible"
	PostStatusHidden  PostStatus = "hidden"
)

func (s PostStatus) Valid() bool {
	return s == PostStatusVisible || s == PostStatusHidden
}

// Post is a reply inside a thread. Replies to replies are attached to the
// top-level post, so ParentPostID always points at a post with no parent.
type Post struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ThreadID     string      `gorm:"type:varchar(36);not null;index" json:"thread_id"`
	AuthorID     string      `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author       *User       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ParentPostID *string     `gorm:"type:varchar(36);index" json:"parent_post_id,omitempty"`
	Body         string      `gorm:"type:text;not null" json:"body"`
	Status       PostStatus  `gorm:"type:varchar(16);default:visible" json:"status"`
	Mentions     StringArray `gorm:"type:text" json:"mentions"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	if p.Status == "" {
		p.Status = PostStatusVisible
	}
	return nil
}

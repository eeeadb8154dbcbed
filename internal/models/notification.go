package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType identifies why a notification was created
type NotificationType string

const (
	NotificationThreadReply NotificationType = "thread.reply"
	NotificationPostReply   NotificationType = "post.reply"
	NotificationMention     NotificationType = "mention"
	NotificationModeration  NotificationType = "moderation"
	NotificationSystem      NotificationType = "system"
)

// Notification is addressed to a single recipient
type Notification struct {
	ID       string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID   string           `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ActorID  *string          `gorm:"type:varchar(36)" json:"actor_id,omitempty"`
	Type     NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title    string           `gorm:"not null" json:"title"`
	Body     string           `gorm:"type:text" json:"body"`
	Data     JSONMap          `gorm:"type:text" json:"data"`
	ThreadID *string          `gorm:"type:varchar(36)" json:"thread_id,omitempty"`
	PostID   *string          `gorm:"type:varchar(36)" json:"post_id,omitempty"`
	IsRead   bool             `gorm:"default:false;index" json:"is_read"`
	ReadAt   *time.Time       `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}

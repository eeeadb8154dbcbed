package models

import (
	"time"

	"gorm.io/gorm"
)

// SecurityEventType enumerates the audited actions
type SecurityEventType string

const (
	EventLoginFailed          SecurityEventType = "auth.login_failed"
	EventLoginSucceeded       SecurityEventType = "auth.login_succeeded"
	EventRefreshReuse         SecurityEventType = "auth.refresh_reuse"
	EventBlockedLogin         SecurityEventType = "auth.blocked_login"
	EventRateLimitExceeded    SecurityEventType = "rate_limit.exceeded"
	EventRoleChanged          SecurityEventType = "admin.role_changed"
	EventStatusChanged        SecurityEventType = "admin.status_changed"
	EventThreadStatusModified SecurityEventType = "moderation.thread_status"
	EventPostStatusModified   SecurityEventType = "moderation.post_status"
)

// Severity of a security event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is an append-only audit record
type SecurityEvent struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Type      SecurityEventType `gorm:"type:varchar(48);not null;index" json:"type"`
	Severity  Severity          `gorm:"type:varchar(16);not null;index" json:"severity"`
	UserID    *string           `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	ActorID   *string           `gorm:"type:varchar(36)" json:"actor_id,omitempty"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"user_agent"`
	Path      string            `json:"path"`
	Details   JSONMap           `gorm:"type:text" json:"details"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}

func (e *SecurityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	return nil
}

// AllModels lists every persisted model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Session{},
		&Thread{},
		&Post{},
		&Notification{},
		&SecurityEvent{},
	}
}

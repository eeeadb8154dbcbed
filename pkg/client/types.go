package client

import (
	"time"
)

// Meta is the pagination block on list responses
type Meta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Page selects a window of a list
type Page struct {
	Limit  int
	Offset int
}

type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// User is a profile. Email, Status and LastActiveAt are only filled for the
// account owner and for admins.
type User struct {
	UserSummary
	Bio          string     `json:"bio"`
	Location     string     `json:"location"`
	Role         string     `json:"role"`
	ThreadCount  int        `json:"thread_count"`
	PostCount    int        `json:"post_count"`
	CreatedAt    time.Time  `json:"created_at"`
	Email        string     `json:"email,omitempty"`
	Status       string     `json:"status,omitempty"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at,omitempty"`
}

// Session is the token pair issued by register, login and refresh
type Session struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	User             *User     `json:"user,omitempty"`
}

type Thread struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Body           string       `json:"body"`
	Tags           []string     `json:"tags"`
	Status         string       `json:"status"`
	PostCount      int          `json:"post_count"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Author         *UserSummary `json:"author,omitempty"`
	AuthorID       string       `json:"author_id"`
}

type Post struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"thread_id"`
	ParentPostID *string      `json:"parent_post_id,omitempty"`
	Body         string       `json:"body"`
	Status       string       `json:"status"`
	Mentions     []string     `json:"mentions"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Author       *UserSummary `json:"author,omitempty"`
	AuthorID     string       `json:"author_id"`
}

type ThreadList struct {
	Threads []Thread `json:"threads"`
	Meta    Meta     `json:"meta"`
}

// ThreadDetail is a thread with one page of its posts
type ThreadDetail struct {
	Thread Thread `json:"thread"`
	Posts  []Post `json:"posts"`
	Meta   Meta   `json:"meta"`
}

type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	ActorID   *string                `json:"actor_id,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data"`
	ThreadID  *string                `json:"thread_id,omitempty"`
	PostID    *string                `json:"post_id,omitempty"`
	IsRead    bool                   `json:"is_read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	Meta          struct {
		Meta
		Unread int64 `json:"unread"`
	} `json:"meta"`
}

// MarkResult reports how many notifications changed and how many remain unread
type MarkResult struct {
	Updated int64 `json:"updated"`
	Unread  int64 `json:"unread"`
}

type HealthIndicator struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Health struct {
	Status    string                     `json:"status"`
	Info      map[string]HealthIndicator `json:"info"`
	Error     map[string]HealthIndicator `json:"error"`
	Details   map[string]HealthIndicator `json:"details"`
	Timestamp time.Time                  `json:"timestamp"`
}

// OK reports whether every dependency is up
func (h *Health) OK() bool {
	return h != nil && h.Status == "ok"
}

type AdminUserDetail struct {
	User  User `json:"user"`
	Stats struct {
		Threads        int   `json:"threads"`
		Posts          int   `json:"posts"`
		SessionsActive int64 `json:"sessions_active"`
	} `json:"stats"`
}

type UserList struct {
	Users []User `json:"users"`
	Meta  Meta   `json:"meta"`
}

type SecurityEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	UserID    *string                `json:"user_id,omitempty"`
	ActorID   *string                `json:"actor_id,omitempty"`
	IP        string                 `json:"ip"`
	UserAgent string                 `json:"user_agent"`
	Path      string                 `json:"path"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

type SecurityEventList struct {
	Events []SecurityEvent `json:"events"`
	Meta   Meta            `json:"meta"`
}

type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

type RateLimitViolation struct {
	Key      string    `json:"key"`
	Path     string    `json:"path"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

type RateLimitStatus struct {
	General          *RateLimitConfig     `json:"general"`
	Auth             *RateLimitConfig     `json:"auth"`
	Backend          string               `json:"backend"`
	TrackedClients   int                  `json:"tracked_clients"`
	RecentViolations []RateLimitViolation `json:"recent_violations"`
}

type CountBlock struct {
	Total  int64 `json:"total"`
	New7d  int64 `json:"new_7d"`
	Active int64 `json:"active,omitempty"`
}

type AnalyticsOverview struct {
	Users               CountBlock `json:"users"`
	Threads             CountBlock `json:"threads"`
	Posts               CountBlock `json:"posts"`
	NotificationsUnread int64      `json:"notifications_unread"`
	TopTags             []struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	} `json:"top_tags"`
	Activity []struct {
		Date    string `json:"date"`
		Users   int    `json:"users"`
		Threads int    `json:"threads"`
		Posts   int    `json:"posts"`
	} `json:"activity"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RealtimeStats are the websocket hub counters
type RealtimeStats struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

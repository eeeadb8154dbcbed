package handlers

import (
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/auth"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/cache"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/middleware"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/search"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/storage"
	"gorm.io/gorm"
)

// EventBroadcaster fans realtime events out to every connected client
type EventBroadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db       *gorm.DB
	auth     auth.AuthServiceInterface
	users    repository.UserRepository
	threads  repository.ThreadRepository
	notifier *notifications.Service
	recorder *security.Recorder

	events  EventBroadcaster
	search  search.ThreadSearcher
	avatars storage.AvatarUploader
	cache   *cache.RedisClient

	generalLimiter *middleware.RateLimiter
	authLimiter    *middleware.RateLimiter
	violations     *middleware.ViolationLog
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, authService auth.AuthServiceInterface, notifier *notifications.Service, recorder *security.Recorder) *Handlers {
	return &Handlers{
		db:       db,
		auth:     authService,
		users:    repository.NewUserRepository(db),
		threads:  repository.NewThreadRepository(db),
		notifier: notifier,
		recorder: recorder,
	}
}

// SetEventBroadcaster sets the websocket hub used for thread and post events
func (h *Handlers) SetEventBroadcaster(events EventBroadcaster) {
	h.events = events
}

// SetSearchClient sets the Elasticsearch search client
func (h *Handlers) SetSearchClient(searchClient search.ThreadSearcher) {
	h.search = searchClient
}

// SetAvatarUploader enables POST /users/me/avatar
func (h *Handlers) SetAvatarUploader(uploader storage.AvatarUploader) {
	h.avatars = uploader
}

// SetCache sets the Redis client used for analytics caching and health reporting
func (h *Handlers) SetCache(redisClient *cache.RedisClient) {
	h.cache = redisClient
}

// SetRateLimiters exposes limiter state on the admin API
func (h *Handlers) SetRateLimiters(general, authLimiter *middleware.RateLimiter, violations *middleware.ViolationLog) {
	h.generalLimiter = general
	h.authLimiter = authLimiter
	h.violations = violations
}

func (h *Handlers) broadcast(eventType string, payload interface{}) {
	if h.events != nil {
		h.events.BroadcastEvent(eventType, payload)
	}
}

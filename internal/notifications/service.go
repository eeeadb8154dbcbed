// Package notifications persists per-user notifications, pushes them to
// connected sockets and forwards them to an optional webhook.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventNotificationCreated is the realtime and webhook event name
const EventNotificationCreated = "notification.created"

var ErrNotFound = errors.New("notification not found")

// Publisher pushes an event to one user's open connections
type Publisher interface {
	SendEventToUser(userID, eventType string, payload interface{})
}

// Input describes one notification to create
type Input struct {
	UserID   string
	ActorID  string
	Type     models.NotificationType
	Title    string
	Body     string
	Data     map[string]interface{}
	ThreadID string
	PostID   string
}

// Service creates and reads notifications
type Service struct {
	db        *gorm.DB
	publisher Publisher
	webhook   *Dispatcher
}

// NewService creates a service. publisher and webhook may be nil.
func NewService(db *gorm.DB, publisher Publisher, webhook *Dispatcher) *Service {
	return &Service{db: db, publisher: publisher, webhook: webhook}
}

// Notify persists inputs, at most one per recipient and never to the actor.
// The first input for a recipient wins, so callers order by priority.
func (s *Service) Notify(ctx context.Context, inputs []Input) ([]*models.Notification, error) {
	seen := make(map[string]bool, len(inputs))
	rows := make([]*models.Notification, 0, len(inputs))

	for _, in := range inputs {
		if in.UserID == "" || in.UserID == in.ActorID || seen[in.UserID] {
			continue
		}
		seen[in.UserID] = true

		n := &models.Notification{
			UserID: in.UserID,
			Type:   in.Type,
			Title:  in.Title,
			Body:   in.Body,
			Data:   models.JSONMap(in.Data),
		}
		if in.ActorID != "" {
			n.ActorID = ptr(in.ActorID)
		}
		if in.ThreadID != "" {
			n.ThreadID = ptr(in.ThreadID)
		}
		if in.PostID != "" {
			n.PostID = ptr(in.PostID)
		}
		rows = append(rows, n)
	}

	if len(rows) == 0 {
		return rows, nil
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("create notifications: %w", err)
	}

	for _, n := range rows {
		metrics.Get().NotificationsCreatedTotal.WithLabelValues(string(n.Type)).Inc()
		if s.publisher != nil {
			s.publisher.SendEventToUser(n.UserID, EventNotificationCreated, n)
		}
		if s.webhook != nil {
			s.webhook.Enqueue(n)
		}
	}

	logger.Log.Debug("Notifications created", zap.Int("count", len(rows)))
	return rows, nil
}

// List returns the user's notifications newest first, the total matching
// count and the unread count.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*models.Notification, int64, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("count notifications: %w", err)
	}

	var items []*models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("list notifications: %w", err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var unread int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return unread, nil
}

// MarkRead marks the listed notifications read. IDs owned by other users are ignored.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.markRead(s.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids))
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.markRead(s.db.WithContext(ctx).Where("user_id = ?", userID))
}

// MarkOne marks a single notification read, ErrNotFound when it is not the user's
func (s *Service) MarkOne(ctx context.Context, userID, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n.IsRead {
		return &n, nil
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	n.IsRead = true
	n.ReadAt = &now
	return &n, nil
}

func (s *Service) markRead(scope *gorm.DB) (int64, error) {
	result := scope.Model(&models.Notification{}).
		Where("is_read = ?", false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func ptr(s string) *string {
	return &s
}

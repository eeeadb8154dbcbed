// Package security records audit events (failed logins, token reuse,
// rate-limit rejections, admin and moderation changes) for the admin API.
package security

import (
	"context"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event is the input to Record
type Event struct {
	Type      models.SecurityEventType
	Severity  models.Severity
	UserID    string
	ActorID   string
	IP        string
	UserAgent string
	Path      string
	Details   map[string]interface{}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type     string
	Severity string
	UserID   string
	Since    *time.Time
	Limit    int
	Offset   int
}

const defaultListLimit = 50

// Recorder persists security events
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record stores the event. Failures are logged and never surface to the caller,
// an audit write must not break the request that triggered it.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if e.Severity == "" {
		e.Severity = models.SeverityInfo
	}

	row := &models.SecurityEvent{
		Type:      e.Type,
		Severity:  e.Severity,
		UserID:    optional(e.UserID),
		ActorID:   optional(e.ActorID),
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Path:      e.Path,
		Details:   models.JSONMap(e.Details),
	}

	metrics.Get().SecurityEventsTotal.WithLabelValues(string(e.Type), string(e.Severity)).Inc()

	fields := []zap.Field{
		zap.String("type", string(e.Type)),
		zap.String("severity", string(e.Severity)),
		logger.WithIP(e.IP),
	}
	if e.UserID != "" {
		fields = append(fields, logger.WithUserID(e.UserID))
	}
	if e.Severity == models.SeverityCritical {
		logger.Log.Warn("Security event", fields...)
	} else {
		logger.Log.Info("Security event", fields...)
	}

	if r == nil || r.db == nil {
		return
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Log.Error("Failed to persist security event", append(fields, zap.Error(err))...)
	}
}

// List returns events newest first, with the total count for the filter
func (r *Recorder) List(ctx context.Context, f Filter) ([]models.SecurityEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SecurityEvent{})
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Severity != "" {
		query = query.Where("severity = ?", f.Severity)
	}
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var events []models.SecurityEvent
	err := query.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&events).Error
	return events, total, err
}

// FromRequest fills the request-derived fields of an event
func FromRequest(c *gin.Context, e Event) Event {
	e.IP = c.ClientIP()
	e.UserAgent = c.Request.UserAgent()
	e.Path = c.Request.URL.Path
	return e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

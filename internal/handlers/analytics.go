package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/cache"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	overviewCacheKey = "analytics:overview"
	overviewCacheTTL = 60 * time.Second
	activityDays     = 7
	topTagsLimit     = 10
	tagSampleSize    = 1000
)

type countBlock struct {
	Total  int64 `json:"total"`
	New7d  int64 `json:"new_7d"`
	Active int64 `json:"active,omitempty"`
}

type tagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type dailyActivity struct {
	Date    string `json:"date"`
	Users   int    `json:"users"`
	Threads int    `json:"threads"`
	Posts   int    `json:"posts"`
}

// AnalyticsOverview is the admin dashboard summary
type AnalyticsOverview struct {
	Users               countBlock      `json:"users"`
	Threads             countBlock      `json:"threads"`
	Posts               countBlock      `json:"posts"`
	NotificationsUnread int64           `json:"notifications_unread"`
	TopTags             []tagCount      `json:"top_tags"`
	Activity            []dailyActivity `json:"activity"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// AnalyticsOverviewHandler serves GET /admin/analytics/overview, cached in
// Redis when available
func (h *Handlers) AnalyticsOverviewHandler(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cache != nil {
		var cached AnalyticsOverview
		err := h.cache.GetJSON(ctx, overviewCacheKey, &cached)
		if err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			logger.WarnWithFields("Analytics cache read failed", err)
		}
	}

	overview, err := buildOverview(ctx, h.db, time.Now().UTC())
	if err != nil {
		logger.ErrorWithFields("Failed to build analytics overview", err)
		util.RespondInternalError(c, "failed to build analytics")
		return
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, overviewCacheKey, overview, overviewCacheTTL); err != nil {
			logger.WarnWithFields("Analytics cache write failed", err)
		}
	}
	c.JSON(http.StatusOK, overview)
}

func buildOverview(ctx context.Context, db *gorm.DB, now time.Time) (*AnalyticsOverview, error) {
	db = db.WithContext(ctx)
	today := now.Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(activityDays - 1))
	weekAgo := now.AddDate(0, 0, -7)

	out := &AnalyticsOverview{GeneratedAt: now}

	counts := []struct {
		model interface{}
		block *countBlock
	}{
		{&models.User{}, &out.Users},
		{&models.Thread{}, &out.Threads},
		{&models.Post{}, &out.Posts},
	}
	for _, cnt := range counts {
		if err := db.Model(cnt.model).Count(&cnt.block.Total).Error; err != nil {
			return nil, err
		}
		if err := db.Model(cnt.model).Where("created_at >= ?", weekAgo).Count(&cnt.block.New7d).Error; err != nil {
			return nil, err
		}
	}
	if err := db.Model(&models.User{}).Where("status = ?", models.UserStatusActive).Count(&out.Users.Active).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Notification{}).Where("is_read = ?", false).Count(&out.NotificationsUnread).Error; err != nil {
		return nil, err
	}

	var tagLists []models.StringArray
	if err := db.Model(&models.Thread{}).Order("created_at DESC").Limit(tagSampleSize).Pluck("tags", &tagLists).Error; err != nil {
		return nil, err
	}
	out.TopTags = topTags(tagLists, topTagsLimit)

	activity := make([]dailyActivity, activityDays)
	for i := range activity {
		activity[i].Date = since.AddDate(0, 0, i).Format("2006-01-02")
	}

	series := []struct {
		model interface{}
		set   func(d *dailyActivity, n int)
	}{
		{&models.User{}, func(d *dailyActivity, n int) { d.Users = n }},
		{&models.Thread{}, func(d *dailyActivity, n int) { d.Threads = n }},
		{&models.Post{}, func(d *dailyActivity, n int) { d.Posts = n }},
	}
	for _, s := range series {
		perDay, err := dailyCounts(db, s.model, since, activityDays)
		if err != nil {
			return nil, err
		}
		for i, n := range perDay {
			s.set(&activity[i], int(n))
		}
	}
	out.Activity = activity

	return out, nil
}

// dailyCounts counts rows created on each of the given number of UTC days
// starting at since,
// one COUNT column per day so the database does the bucketing
func dailyCounts(db *gorm.DB, model interface{}, since time.Time, days int) ([]int64, error) {
	cols := make([]string, days)
	args := make([]interface{}, 0, 2*days)
	for i := range cols {
		cols[i] = "COUNT(CASE WHEN created_at >= ? AND created_at < ? THEN 1 END)"
		args = append(args, since.AddDate(0, 0, i), since.AddDate(0, 0, i+1))
	}

	counts := make([]int64, days)
	dest := make([]interface{}, days)
	for i := range counts {
		dest[i] = &counts[i]
	}
	row := db.Model(model).Select(strings.Join(cols, ", "), args...).Where("created_at >= ?", since).Row()
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return counts, nil
}

func topTags(lists []models.StringArray, limit int) []tagCount {
	counts := make(map[string]int)
	for _, tags := range lists {
		for _, t := range tags {
			if t != "" {
				counts[t]++
			}
		}
	}

	out := make([]tagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, tagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"gorm.io/gorm"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrPostNotFound   = errors.New("post not found")
	ErrThreadClosed   = errors.New("thread is not open")
)

// ThreadFilter narrows thread listings. Zero values match everything.
type ThreadFilter struct {
	Tag            string
	AuthorUsername string
	Query          string
	Status         string
	IDs            []string
	Limit          int
	Offset         int
}

// PostFilter narrows the posts of one thread
type PostFilter struct {
	ThreadID string
	// ViewerID sees their own hidden posts; staff see all
	ViewerID   string
	IncludeAll bool
	Limit      int
	Offset     int
}

// ThreadRepository handles threads and their posts
type ThreadRepository interface {
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)
	ListThreads(ctx context.Context, filter ThreadFilter) ([]*models.Thread, int64, error)
	GetThreadsByIDs(ctx context.Context, ids []string) ([]*models.Thread, error)
	UpdateThreadStatus(ctx context.Context, threadID string, status models.ThreadStatus) error

	// CreatePost inserts the post and bumps the thread and author counters atomically
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error)
	UpdatePostStatus(ctx context.Context, postID string, status models.PostStatus) error
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	if thread == nil || thread.AuthorID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(thread).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", thread.AuthorID).
			UpdateColumn("thread_count", gorm.Expr("thread_count + 1")).Error
	})
}

func (r *threadRepository) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", threadID).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// ListThreads returns threads by most recent activity
func (r *threadRepository) ListThreads(ctx context.Context, filter ThreadFilter) ([]*models.Thread, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Thread{})

	if filter.IDs != nil {
		query = query.Where("id IN ?", filter.IDs)
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		// tags are stored as {a,b}; wrap in commas to match whole tags only
		query = query.Where(`REPLACE(REPLACE(tags, '{', ','), '}', ',') LIKE ? ESCAPE '\'`, "%,"+escapeLike(tag)+",%")
	}
	if author := strings.TrimSpace(filter.AuthorUsername); author != "" {
		query = query.Where("author_id IN (?)",
			r.db.Model(&models.User{}).Select("id").Where("LOWER(username) = ?", strings.ToLower(author)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := containsPattern(q)
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(body) LIKE ? ESCAPE '\')`, like, like)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var threads []*models.Thread
	err := query.Preload("Author").
		Order("last_activity_at DESC").Order("created_at DESC").
		Limit(limitOrDefault(filter.Limit)).Offset(filter.Offset).
		Find(&threads).Error
	return threads, total, err
}

// GetThreadsByIDs returns threads in the order of ids, skipping missing ones
func (r *threadRepository) GetThreadsByIDs(ctx context.Context, ids []string) ([]*models.Thread, error) {
	if len(ids) == 0 {
		return []*models.Thread{}, nil
	}

	var found []*models.Thread
	if err := r.db.WithContext(ctx).Preload("Author").Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Thread, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	ordered := make([]*models.Thread, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}

func (r *threadRepository) UpdateThreadStatus(ctx context.Context, threadID string, status models.ThreadStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", threadID).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrThreadNotFound
	}
	return nil
}

func (r *threadRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post == nil || post.ThreadID == "" || post.AuthorID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}

		// the status guard makes a concurrent lock or archive win over the reply
		res := tx.Model(&models.Thread{}).
			Where("id = ? AND status = ?", post.ThreadID, models.ThreadStatusOpen).
			UpdateColumns(map[string]interface{}{
				"post_count":       gorm.Expr("post_count + 1"),
				"last_activity_at": post.CreatedAt,
				"updated_at":       time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&models.Thread{}).Where("id = ?", post.ThreadID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return ErrThreadNotFound
			}
			return ErrThreadClosed
		}

		return tx.Model(&models.User{}).Where("id = ?", post.AuthorID).
			UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error
	})
}

func (r *threadRepository) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPosts returns a thread's posts oldest first
func (r *threadRepository) ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Post{}).Where("thread_id = ?", filter.ThreadID)
	if !filter.IncludeAll {
		if filter.ViewerID != "" {
			query = query.Where("(status = ? OR author_id = ?)", models.PostStatusVisible, filter.ViewerID)
		} else {
			query = query.Where("status = ?", models.PostStatusVisible)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*models.Post
	err := query.Preload("Author").Order("created_at ASC").
		Limit(limitOrDefault(filter.Limit)).Offset(filter.Offset).
		Find(&posts).Error
	return posts, total, err
}

func (r *threadRepository) UpdatePostStatus(ctx context.Context, postID string, status models.PostStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

const defaultPageSize = 20

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE ... ESCAPE '\' pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// containsPattern is a case-insensitive substring pattern for LOWER(col) LIKE
func containsPattern(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}

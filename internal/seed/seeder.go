package seed

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedEmailDomain marks accounts created by the seeder. Clean removes
// exactly these accounts and everything they wrote.
const SeedEmailDomain = "seed.khoshgolpo.dev"

// SeedPassword is the password of every seeded account
const SeedPassword = "password123"

var seedTags = []string{"general", "go", "golang", "databases", "devops", "frontend", "career", "help", "showcase", "meta", "books", "music"}

// Seeder handles database seeding operations
type Seeder struct {
	db           *gorm.DB
	threads      repository.ThreadRepository
	notifier     *notifications.Service
	rng          *rand.Rand
	bcryptCost   int
	now          func() time.Time
	passwordHash string
}

// Counts sizes a seeding run
type Counts struct {
	Users   int
	Threads int
	Posts   int
}

// DevCounts is the volume used by `seed dev`
var DevCounts = Counts{Users: 40, Threads: 120, Posts: 800}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	seed := time.Now().UnixNano()
	_ = gofakeit.Seed(seed)
	return &Seeder{
		db:         db,
		threads:    repository.NewThreadRepository(db),
		notifier:   notifications.NewService(db, nil, nil),
		rng:        rand.New(rand.NewSource(seed)),
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithSeed makes the run reproducible
func (s *Seeder) WithSeed(seed int64) *Seeder {
	_ = gofakeit.Seed(seed)
	s.rng = rand.New(rand.NewSource(seed))
	return s
}

// WithBcryptCost lowers hashing cost, used by tests
func (s *Seeder) WithBcryptCost(cost int) *Seeder {
	s.bcryptCost = cost
	return s
}

// SeedDev fills the database with realistic forum activity
func (s *Seeder) SeedDev(ctx context.Context) error {
	return s.Seed(ctx, DevCounts)
}

// Seed creates c.Users accounts, c.Threads threads and c.Posts replies
// spread over the last 30 days, plus the notifications they trigger.
func (s *Seeder) Seed(ctx context.Context, c Counts) error {
	logger.Log.Info("Creating users...", zap.Int("count", c.Users))
	users, err := s.seedUsers(ctx, c.Users)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating threads...", zap.Int("count", c.Threads))
	threads, err := s.seedThreads(ctx, users, c.Threads)
	if err != nil {
		return fmt.Errorf("failed to seed threads: %w", err)
	}

	logger.Log.Info("Creating posts...", zap.Int("count", c.Posts))
	if err := s.seedPosts(ctx, users, threads, c.Posts); err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	logger.Log.Info("Moderating a few threads...")
	return s.moderate(ctx, threads)
}

// SeedTest creates fixed accounts for end-to-end tests: alice is an admin,
// bob a moderator, the rest members. Existing accounts are reused.
func (s *Seeder) SeedTest(ctx context.Context) error {
	specs := []struct {
		username    string
		displayName string
		role        models.Role
	}{
		{"alice", "Alice Smith", models.RoleAdmin},
		{"bob", "Bob Johnson", models.RoleModerator},
		{"charlie", "Charlie Brown", models.RoleMember},
		{"diana", "Diana Prince", models.RoleMember},
		{"eve", "Eve Wilson", models.RoleMember},
	}

	hash, err := s.hash()
	if err != nil {
		return err
	}

	var users []*models.User
	for _, spec := range specs {
		var user models.User
		err := s.db.WithContext(ctx).Where("username = ?", spec.username).First(&user).Error
		if err == nil {
			users = append(users, &user)
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		user = models.User{
			Email:        spec.username + "@" + SeedEmailDomain,
			Username:     spec.username,
			DisplayName:  spec.displayName,
			PasswordHash: hash,
			Role:         spec.role,
			AvatarURL:    avatarURL(spec.username),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
		users = append(users, &user)
	}

	threads, err := s.seedThreads(ctx, users, 5)
	if err != nil {
		return fmt.Errorf("failed to seed test threads: %w", err)
	}
	return s.seedPosts(ctx, users, threads, 15)
}

// Clean removes seeded accounts and everything attached to them
func (s *Seeder) Clean(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seeded := tx.Unscoped().Model(&models.User{}).Select("id").Where("email LIKE ?", "%@"+SeedEmailDomain)
		seededThreads := tx.Unscoped().Model(&models.Thread{}).Select("id").Where("author_id IN (?)", seeded)

		steps := []struct {
			table string
			scope *gorm.DB
			model interface{}
		}{
			{"notifications", tx.Unscoped().Where("user_id IN (?) OR actor_id IN (?)", seeded, seeded), &models.Notification{}},
			{"posts", tx.Unscoped().Where("author_id IN (?) OR thread_id IN (?)", seeded, seededThreads), &models.Post{}},
			{"threads", tx.Unscoped().Where("author_id IN (?)", seeded), &models.Thread{}},
			{"sessions", tx.Unscoped().Where("user_id IN (?)", seeded), &models.Session{}},
			{"security_events", tx.Unscoped().Where("user_id IN (?)", seeded), &models.SecurityEvent{}},
			{"users", tx.Unscoped().Where("email LIKE ?", "%@"+SeedEmailDomain), &models.User{}},
		}
		for _, step := range steps {
			res := step.scope.Delete(step.model)
			if res.Error != nil {
				return fmt.Errorf("failed to clean %s: %w", step.table, res.Error)
			}
			logger.Log.Info("Cleaned", zap.String("table", step.table), zap.Int64("rows", res.RowsAffected))
		}
		return nil
	})
}

func (s *Seeder) hash() (string, error) {
	if s.passwordHash != "" {
		return s.passwordHash, nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	s.passwordHash = string(h)
	return s.passwordHash, nil
}

// seedUsers creates count members; roughly one in ten is a moderator
func (s *Seeder) seedUsers(ctx context.Context, count int) ([]*models.User, error) {
	hash, err := s.hash()
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, count)
	taken := make(map[string]bool, count)
	for len(users) < count {
		username := strings.ToLower(gofakeit.Username())
		username = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
				return r
			}
			return -1
		}, username)
		if len(username) < 3 || len(username) > 30 || taken[username] {
			continue
		}
		var exists int64
		s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(username) = ?", username).Count(&exists)
		if exists > 0 {
			continue
		}
		taken[username] = true

		role := models.RoleMember
		if s.rng.Intn(10) == 0 {
			role = models.RoleModerator
		}
		joined := s.between(s.now().AddDate(0, 0, -30), s.now())
		lastActive := s.between(joined, s.now())

		user := &models.User{
			Email:        username + "@" + SeedEmailDomain,
			Username:     username,
			DisplayName:  gofakeit.Name(),
			Bio:          gofakeit.HipsterSentence(),
			Location:     fmt.Sprintf("%s, %s", gofakeit.City(), gofakeit.Country()),
			AvatarURL:    avatarURL(username),
			PasswordHash: hash,
			Role:         role,
			LastActiveAt: &lastActive,
			CreatedAt:    joined,
			UpdatedAt:    joined,
		}
		if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}

	logger.Log.Info("Created seed users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Seeder) seedThreads(ctx context.Context, users []*models.User, count int) ([]*models.Thread, error) {
	if len(users) == 0 {
		return nil, nil
	}

	threads := make([]*models.Thread, 0, count)
	for i := 0; i < count; i++ {
		author := users[s.rng.Intn(len(users))]
		created := s.between(author.CreatedAt, s.now())

		thread := &models.Thread{
			AuthorID:       author.ID,
			Title:          strings.TrimSuffix(gofakeit.Question(), "?") + "?",
			Body:           gofakeit.Paragraph(2, 4, 12, "\n\n"),
			Tags:           s.pickTags(),
			LastActivityAt: created,
			CreatedAt:      created,
			UpdatedAt:      created,
		}
		if err := s.threads.CreateThread(ctx, thread); err != nil {
			return nil, fmt.Errorf("failed to create thread: %w", err)
		}
		thread.Author = author
		threads = append(threads, thread)
	}

	logger.Log.Info("Created seed threads", zap.Int("count", len(threads)))
	return threads, nil
}

// seedPosts replies in chronological order so last_activity_at ends up on
// the newest post. About a third of replies answer an earlier post.
func (s *Seeder) seedPosts(ctx context.Context, users []*models.User, threads []*models.Thread, count int) error {
	if len(users) == 0 || len(threads) == 0 {
		return nil
	}

	type reply struct {
		thread *models.Thread
		at     time.Time
	}
	replies := make([]reply, 0, count)
	for i := 0; i < count; i++ {
		t := threads[s.rng.Intn(len(threads))]
		replies = append(replies, reply{thread: t, at: s.between(t.CreatedAt, s.now())})
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].at.Before(replies[j].at) })

	topLevel := make(map[string][]*models.Post, len(threads))
	for _, r := range replies {
		author := users[s.rng.Intn(len(users))]

		var parent *models.Post
		if roots := topLevel[r.thread.ID]; len(roots) > 0 && s.rng.Intn(3) == 0 {
			parent = roots[s.rng.Intn(len(roots))]
		}

		body := gofakeit.Paragraph(1, 3, 10, " ")
		var mentioned *models.User
		if s.rng.Intn(8) == 0 {
			mentioned = users[s.rng.Intn(len(users))]
			body = "@" + mentioned.Username + " " + body
		}

		post := &models.Post{
			ThreadID:  r.thread.ID,
			AuthorID:  author.ID,
			Body:      body,
			CreatedAt: r.at,
			UpdatedAt: r.at,
		}
		if parent != nil {
			post.ParentPostID = &parent.ID
		}
		if mentioned != nil {
			post.Mentions = models.StringArray{mentioned.Username}
		}
		if err := s.threads.CreatePost(ctx, post); err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		if parent == nil {
			topLevel[r.thread.ID] = append(topLevel[r.thread.ID], post)
		}

		if err := s.notifyReply(ctx, author, r.thread, parent, mentioned, post); err != nil {
			return err
		}
	}

	logger.Log.Info("Created seed posts", zap.Int("count", len(replies)))
	return nil
}

func (s *Seeder) notifyReply(ctx context.Context, actor *models.User, thread *models.Thread, parent *models.Post, mentioned *models.User, post *models.Post) error {
	data := map[string]interface{}{"thread_title": thread.Title, "actor": actor.Username}
	var inputs []notifications.Input
	if parent != nil {
		inputs = append(inputs, notifications.Input{
			UserID: parent.AuthorID, ActorID: actor.ID, Type: models.NotificationPostReply,
			Title: actor.Username + " replied to your post", ThreadID: thread.ID, PostID: post.ID, Data: data,
		})
	}
	inputs = append(inputs, notifications.Input{
		UserID: thread.AuthorID, ActorID: actor.ID, Type: models.NotificationThreadReply,
		Title: actor.Username + " replied to your thread", ThreadID: thread.ID, PostID: post.ID, Data: data,
	})
	if mentioned != nil {
		inputs = append(inputs, notifications.Input{
			UserID: mentioned.ID, ActorID: actor.ID, Type: models.NotificationMention,
			Title: actor.Username + " mentioned you", ThreadID: thread.ID, PostID: post.ID, Data: data,
		})
	}

	rows, err := s.notifier.Notify(ctx, inputs)
	if err != nil {
		return err
	}
	// older notifications are mostly read already
	for _, n := range rows {
		if post.CreatedAt.Before(s.now().AddDate(0, 0, -3)) && s.rng.Intn(4) != 0 {
			readAt := s.between(post.CreatedAt, s.now())
			n.IsRead = true
			n.ReadAt = &readAt
		}
		n.CreatedAt = post.CreatedAt
		if err := s.db.WithContext(ctx).Model(n).UpdateColumns(map[string]interface{}{
			"is_read":    n.IsRead,
			"read_at":    n.ReadAt,
			"created_at": n.CreatedAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to backdate notification: %w", err)
		}
	}
	return nil
}

// moderate locks or archives a handful of threads
func (s *Seeder) moderate(ctx context.Context, threads []*models.Thread) error {
	for _, t := range threads {
		var status models.ThreadStatus
		switch s.rng.Intn(20) {
		case 0:
			status = models.ThreadStatusLocked
		case 1:
			status = models.ThreadStatusArchived
		default:
			continue
		}
		if err := s.threads.UpdateThreadStatus(ctx, t.ID, status); err != nil {
			return fmt.Errorf("failed to moderate thread: %w", err)
		}
		t.Status = status
	}
	return nil
}

func (s *Seeder) pickTags() models.StringArray {
	n := s.rng.Intn(3) + 1
	picked := make(map[string]bool, n)
	tags := make(models.StringArray, 0, n)
	for len(tags) < n {
		tag := seedTags[s.rng.Intn(len(seedTags))]
		if !picked[tag] {
			picked[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

func (s *Seeder) between(from, to time.Time) time.Time {
	if !to.After(from) {
		return from
	}
	return from.Add(time.Duration(s.rng.Int63n(int64(to.Sub(from)))))
}

func avatarURL(username string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/thumbs/png?seed=%s", username)
}

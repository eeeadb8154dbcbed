package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/auth"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/cache"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/middleware"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func (s *HandlersTestSuite) TestAdminRoutesRequireAdmin() {
	_, memberToken := s.user("member", models.RoleMember)
	_, modToken := s.user("mod", models.RoleModerator)

	for _, path := range []string{"/admin/users", "/admin/security/events", "/admin/security/rate-limit", "/admin/analytics/overview"} {
		s.Equal(http.StatusForbidden, s.request(http.MethodGet, path, memberToken, nil).Code, path)
		s.Equal(http.StatusForbidden, s.request(http.MethodGet, path, modToken, nil).Code, path)
		s.Equal(http.StatusUnauthorized, s.request(http.MethodGet, path, "", nil).Code, path)
	}
}

func (s *HandlersTestSuite) TestAdminListAndGetUsers() {
	_, adminToken := s.user("root", models.RoleAdmin)
	alice, _ := s.user("alice", models.RoleMember)
	s.user("mod", models.RoleModerator)
	testutil.CreateThread(s.T(), s.db, alice, "counted")
	s.db.Model(alice).UpdateColumn("thread_count", 1)

	w := s.request(http.MethodGet, "/admin/users?role=moderator", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	users := s.decode(w)["users"].([]interface{})
	s.Require().Len(users, 1)
	s.Equal("mod", users[0].(map[string]interface{})["username"])

	w = s.request(http.MethodGet, "/admin/users?q=ALI", adminToken, nil)
	s.Len(s.decode(w)["users"], 1)

	w = s.request(http.MethodGet, "/admin/users?status=sleeping", adminToken, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.request(http.MethodGet, "/admin/users/"+alice.ID, adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	stats := body["stats"].(map[string]interface{})
	s.Equal(float64(1), stats["threads"])
	s.Equal(float64(1), stats["sessions_active"])
	s.Equal("alice@example.com", body["user"].(map[string]interface{})["email"])

	w = s.request(http.MethodGet, "/admin/users/missing", adminToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestAdminUpdateUser() {
	admin, adminToken := s.user("root", models.RoleAdmin)
	alice, aliceToken := s.user("alice", models.RoleMember)

	w := s.request(http.MethodPatch, "/admin/users/"+admin.ID, adminToken, map[string]string{"role": "member"})
	s.Equal(http.StatusConflict, w.Code)
	w = s.request(http.MethodPatch, "/admin/users/"+admin.ID, adminToken, map[string]string{"status": "banned"})
	s.Equal(http.StatusConflict, w.Code)

	w = s.request(http.MethodPatch, "/admin/users/"+alice.ID, adminToken, map[string]string{"role": "overlord"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	w = s.request(http.MethodPatch, "/admin/users/"+alice.ID, adminToken, map[string]string{})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.request(http.MethodPatch, "/admin/users/"+alice.ID, adminToken, map[string]string{"role": "moderator"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("moderator", s.decode(w)["user"].(map[string]interface{})["role"])

	w = s.request(http.MethodPatch, "/admin/users/"+alice.ID, adminToken, map[string]string{"status": "suspended", "reason": "cool off"})
	s.Require().Equal(http.StatusOK, w.Code)

	active, err := s.auth.ActiveSessions(context.Background(), alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), active)

	// the suspended account can no longer use its access token
	s.Equal(http.StatusForbidden, s.request(http.MethodGet, "/auth/me", aliceToken, nil).Code)

	var roleEvents, statusEvents int64
	s.db.Model(&models.SecurityEvent{}).Where("type = ?", models.EventRoleChanged).Count(&roleEvents)
	s.db.Model(&models.SecurityEvent{}).Where("type = ?", models.EventStatusChanged).Count(&statusEvents)
	s.Equal(int64(1), roleEvents)
	s.Equal(int64(1), statusEvents)
}

func (s *HandlersTestSuite) TestSecurityEvents() {
	_, adminToken := s.user("root", models.RoleAdmin)
	s.user("alice", models.RoleMember)

	for i := 0; i < 2; i++ {
		_, err := s.auth.Login(context.Background(), auth.LoginRequest{Identifier: "alice", Password: "wrong-password"}, auth.ClientInfo{IP: "10.1.1.1"})
		s.Require().Error(err)
	}

	w := s.request(http.MethodGet, "/admin/security/events?type=auth.login_failed", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Len(body["events"], 2)
	s.Equal(float64(2), body["meta"].(map[string]interface{})["total"])

	w = s.request(http.MethodGet, "/admin/security/events?since=yesterday", adminToken, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlersTestSuite) TestRateLimitStatus() {
	_, adminToken := s.user("root", models.RoleAdmin)

	violations := middleware.NewViolationLog(10)
	general := middleware.NewRateLimiter(middleware.RateLimitConfig{Name: "general", RPS: 10, Burst: 20}, nil, nil, violations)
	authLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{Name: "auth", RPS: 1, Burst: 5}, nil, nil, violations)
	s.handlers.SetRateLimiters(general, authLimiter, violations)

	general.Allow(context.Background(), "ip:1.2.3.4")
	violations.Add("ip:1.2.3.4", "/auth/login", time.Now())

	w := s.request(http.MethodGet, "/admin/security/rate-limit", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("memory", body["backend"])
	s.Equal(float64(10), body["general"].(map[string]interface{})["rps"])
	s.Equal(float64(5), body["auth"].(map[string]interface{})["burst"])
	s.Equal(float64(1), body["tracked_clients"])
	recent := body["recent_violations"].([]interface{})
	s.Require().Len(recent, 1)
	s.Equal("/auth/login", recent[0].(map[string]interface{})["path"])
}

func (s *HandlersTestSuite) TestAnalyticsOverviewIsCached() {
	_, adminToken := s.user("root", models.RoleAdmin)
	alice, _ := s.user("alice", models.RoleMember)
	testutil.CreateThread(s.T(), s.db, alice, "One")
	tagged := &models.Thread{AuthorID: alice.ID, Title: "Two", Body: "b", Tags: models.StringArray{"go", "general"}}
	s.Require().NoError(s.db.Create(tagged).Error)

	mr := miniredis.RunT(s.T())
	s.handlers.SetCache(cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	w := s.request(http.MethodGet, "/admin/analytics/overview", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.decode(w)
	users := body["users"].(map[string]interface{})
	s.Equal(float64(2), users["total"])
	s.Equal(float64(2), users["new_7d"])
	s.Equal(float64(2), body["threads"].(map[string]interface{})["total"])

	tags := body["top_tags"].([]interface{})
	s.Require().NotEmpty(tags)
	s.Equal("general", tags[0].(map[string]interface{})["tag"])
	s.Equal(float64(2), tags[0].(map[string]interface{})["count"])

	activity := body["activity"].([]interface{})
	s.Require().Len(activity, 7)
	s.Equal(float64(2), activity[6].(map[string]interface{})["threads"])

	s.True(mr.Exists(overviewCacheKey))

	// served from cache: a new thread does not show up until the entry expires
	testutil.CreateThread(s.T(), s.db, alice, "Three")
	w = s.request(http.MethodGet, "/admin/analytics/overview", adminToken, nil)
	s.Equal(float64(2), s.decode(w)["threads"].(map[string]interface{})["total"])

	mr.FastForward(overviewCacheTTL + time.Second)
	w = s.request(http.MethodGet, "/admin/analytics/overview", adminToken, nil)
	s.Equal(float64(3), s.decode(w)["threads"].(map[string]interface{})["total"])
}

func (s *HandlersTestSuite) TestDailyCountsBucketsByDay() {
	alice, _ := s.user("alice", models.RoleMember)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{
		since.Add(-time.Minute),
		since,
		since.Add(23 * time.Hour),
		since.AddDate(0, 0, 2).Add(time.Hour),
		since.AddDate(0, 0, 3),
	} {
		thread := &models.Thread{AuthorID: alice.ID, Title: "Dated", Body: "b", CreatedAt: at, LastActivityAt: at}
		s.Require().NoError(s.db.Create(thread).Error)
	}

	counts, err := dailyCounts(s.db, &models.Thread{}, since, 3)
	s.Require().NoError(err)
	s.Equal([]int64{2, 0, 1}, counts)
}

func (s *HandlersTestSuite) TestHealthIncludesRedis() {
	mr := miniredis.RunT(s.T())
	s.handlers.SetCache(cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	w := s.request(http.MethodGet, "/health", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	info := s.decode(w)["info"].(map[string]interface{})
	s.Contains(info, "redis")

	mr.Close()
	w = s.request(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	body := s.decode(w)
	s.Equal("error", body["status"])
	s.Contains(body["error"], "redis")
	s.Contains(body["info"], "database")
}

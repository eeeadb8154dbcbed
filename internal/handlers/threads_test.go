package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/notifications"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/search"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/websocket"
	"gorm.io/gorm"
)

func (s *HandlersTestSuite) TestCreateThread() {
	alice, token := s.user("alice", models.RoleMember)
	bob, _ := s.user("bob", models.RoleMember)

	w := s.request(http.MethodPost, "/threads", token, map[string]interface{}{
		"title": "  Welcome to the forum ",
		"body":  "hello @bob and @alice and @ghost",
		"tags":  []string{"Intro", "#intro", "meta"},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	thread := s.decode(w)["thread"].(map[string]interface{})
	s.Equal("Welcome to the forum", thread["title"])
	s.Equal([]interface{}{"intro", "meta"}, thread["tags"])
	s.Equal("open", thread["status"])
	s.Equal("alice", thread["author"].(map[string]interface{})["username"])

	s.Len(s.realtime.ofType(websocket.EventThreadCreated), 1)

	var author models.User
	s.Require().NoError(s.db.First(&author, "id = ?", alice.ID).Error)
	s.Equal(1, author.ThreadCount)

	// the author mentioning themselves is skipped
	mentions := s.notificationsFor(bob.ID)
	s.Require().Len(mentions, 1)
	s.Equal(models.NotificationMention, mentions[0].Type)
	s.Empty(s.notificationsFor(alice.ID))
}

func (s *HandlersTestSuite) TestCreateThreadValidation() {
	_, token := s.user("alice", models.RoleMember)

	w := s.request(http.MethodPost, "/threads", token, map[string]interface{}{"title": "Hi", "body": "x"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("title", s.decode(w)["field"])

	// padding does not count towards the title length
	w = s.request(http.MethodPost, "/threads", token, map[string]interface{}{"title": "    a    ", "body": "x"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("title", s.decode(w)["field"])

	w = s.request(http.MethodPost, "/threads", token, map[string]interface{}{"title": "Blank body", "body": "   "})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("body", s.decode(w)["field"])

	var count int64
	s.Require().NoError(s.db.Model(&models.Thread{}).Count(&count).Error)
	s.Zero(count)

	w = s.request(http.MethodPost, "/threads", token, map[string]interface{}{
		"title": "Too many tags",
		"body":  "x",
		"tags":  []string{"a", "b", "c", "d", "e", "f"},
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("tags", s.decode(w)["field"])

	w = s.request(http.MethodPost, "/threads", "", map[string]interface{}{"title": "Anonymous", "body": "x"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestListThreadsFiltersAndPaginates() {
	alice, _ := s.user("alice", models.RoleMember)
	bob, _ := s.user("bob", models.RoleMember)
	testutil.CreateThread(s.T(), s.db, alice, "Alpha topic")
	testutil.CreateThread(s.T(), s.db, bob, "Beta topic")
	golang := &models.Thread{AuthorID: bob.ID, Title: "Go question", Body: "goroutines?", Tags: models.StringArray{"go"}}
	s.Require().NoError(s.db.Create(golang).Error)

	w := s.request(http.MethodGet, "/threads?limit=2", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Len(body["threads"], 2)
	meta := body["meta"].(map[string]interface{})
	s.Equal(float64(3), meta["total"])
	s.Equal(float64(2), meta["limit"])

	w = s.request(http.MethodGet, "/threads?tag=go", "", nil)
	threads := s.decode(w)["threads"].([]interface{})
	s.Require().Len(threads, 1)
	s.Equal(golang.ID, threads[0].(map[string]interface{})["id"])

	w = s.request(http.MethodGet, "/threads?author=alice", "", nil)
	s.Len(s.decode(w)["threads"], 1)

	w = s.request(http.MethodGet, "/threads?q=GOROUTINES", "", nil)
	s.Len(s.decode(w)["threads"], 1)

	w = s.request(http.MethodGet, "/threads?status=bogus", "", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	// LIKE wildcards in filters are literal characters
	abc := &models.Thread{AuthorID: alice.ID, Title: "Letters", Body: "100_percent", Tags: models.StringArray{"abc"}}
	s.Require().NoError(s.db.Create(abc).Error)

	w = s.request(http.MethodGet, "/threads?tag=a_c", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(0), s.decode(w)["meta"].(map[string]interface{})["total"])

	w = s.request(http.MethodGet, "/threads?tag=abc", "", nil)
	s.Equal(float64(1), s.decode(w)["meta"].(map[string]interface{})["total"])

	w = s.request(http.MethodGet, "/threads?q=%25", "", nil)
	s.Equal(float64(0), s.decode(w)["meta"].(map[string]interface{})["total"])

	w = s.request(http.MethodGet, "/threads?q=_", "", nil)
	threads = s.decode(w)["threads"].([]interface{})
	s.Require().Len(threads, 1)
	s.Equal(abc.ID, threads[0].(map[string]interface{})["id"])
}

func (s *HandlersTestSuite) TestListThreadsUsesSearchWhenConfigured() {
	alice, _ := s.user("alice", models.RoleMember)
	first := testutil.CreateThread(s.T(), s.db, alice, "First")
	second := testutil.CreateThread(s.T(), s.db, alice, "Second")

	searcher := &fakeSearcher{result: &search.ThreadResult{IDs: []string{second.ID, first.ID}, Total: 7}}
	s.handlers.SetSearchClient(searcher)

	w := s.request(http.MethodGet, "/threads?q=anything&tag=general", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	threads := body["threads"].([]interface{})
	s.Require().Len(threads, 2)
	s.Equal(second.ID, threads[0].(map[string]interface{})["id"])
	s.Equal(float64(7), body["meta"].(map[string]interface{})["total"])
	s.Require().Len(searcher.queries, 1)
	s.Equal("general", searcher.queries[0].Tag)

	// a failing search backend falls back to the database
	searcher.err = errors.New("cluster down")
	w = s.request(http.MethodGet, "/threads?q=second", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["threads"], 1)
}

func (s *HandlersTestSuite) TestCreateThreadIndexesInSearch() {
	_, token := s.user("alice", models.RoleMember)
	searcher := &fakeSearcher{}
	s.handlers.SetSearchClient(searcher)

	w := s.request(http.MethodPost, "/threads", token, map[string]interface{}{"title": "Indexed", "body": "body"})
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Eventually(func() bool { return searcher.indexedCount() == 1 }, time.Second, 10*time.Millisecond)
}

func (s *HandlersTestSuite) TestGetThreadHidesModeratedPosts() {
	alice, aliceToken := s.user("alice", models.RoleMember)
	bob, bobToken := s.user("bob", models.RoleMember)
	_, modToken := s.user("mod", models.RoleModerator)
	thread := testutil.CreateThread(s.T(), s.db, alice, "Visibility")

	s.db.Create(&models.Post{ThreadID: thread.ID, AuthorID: alice.ID, Body: "visible"})
	s.db.Create(&models.Post{ThreadID: thread.ID, AuthorID: bob.ID, Body: "hidden", Status: models.PostStatusHidden})

	count := func(token string) int {
		w := s.request(http.MethodGet, "/threads/"+thread.ID, token, nil)
		s.Require().Equal(http.StatusOK, w.Code)
		return len(s.decode(w)["posts"].([]interface{}))
	}
	s.Equal(1, count(""))
	s.Equal(1, count(aliceToken))
	s.Equal(2, count(bobToken))
	s.Equal(2, count(modToken))

	w := s.request(http.MethodGet, "/threads/missing", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestCreatePostNotifiesParticipants() {
	alice, _ := s.user("alice", models.RoleMember)
	bob, bobToken := s.user("bob", models.RoleMember)
	carol, carolToken := s.user("carol", models.RoleMember)
	dave, _ := s.user("dave", models.RoleMember)
	thread := testutil.CreateThread(s.T(), s.db, alice, "Discussion")

	w := s.request(http.MethodPost, "/threads/"+thread.ID+"/posts", bobToken, map[string]interface{}{"body": "first reply"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	bobPost := s.decode(w)["post"].(map[string]interface{})

	aliceNotes := s.notificationsFor(alice.ID)
	s.Require().Len(aliceNotes, 1)
	s.Equal(models.NotificationThreadReply, aliceNotes[0].Type)

	// carol replies to bob and mentions alice and dave
	w = s.request(http.MethodPost, "/threads/"+thread.ID+"/posts", carolToken, map[string]interface{}{
		"body":           "agreed @dave @alice @carol",
		"parent_post_id": bobPost["id"],
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	carolPost := s.decode(w)["post"].(map[string]interface{})
	s.Equal(bobPost["id"], carolPost["parent_post_id"])
	s.ElementsMatch([]interface{}{"dave", "alice", "carol"}, carolPost["mentions"])

	bobNotes := s.notificationsFor(bob.ID)
	s.Require().Len(bobNotes, 1)
	s.Equal(models.NotificationPostReply, bobNotes[0].Type)

	// alice is both thread author and mentioned: one notification, thread.reply wins
	aliceNotes = s.notificationsFor(alice.ID)
	s.Require().Len(aliceNotes, 2)
	s.Equal(models.NotificationThreadReply, aliceNotes[1].Type)

	daveNotes := s.notificationsFor(dave.ID)
	s.Require().Len(daveNotes, 1)
	s.Equal(models.NotificationMention, daveNotes[0].Type)
	s.Empty(s.notificationsFor(carol.ID))

	s.Len(s.realtime.ofType(websocket.EventPostCreated), 2)
	s.NotEmpty(s.realtime.ofType(notifications.EventNotificationCreated))

	var stored models.Thread
	s.Require().NoError(s.db.First(&stored, "id = ?", thread.ID).Error)
	s.Equal(2, stored.PostCount)
}

func (s *HandlersTestSuite) TestReplyToReplyIsFlattened() {
	alice, aliceToken := s.user("alice", models.RoleMember)
	thread := testutil.CreateThread(s.T(), s.db, alice, "Nesting")

	top := &models.Post{ThreadID: thread.ID, AuthorID: alice.ID, Body: "top"}
	s.Require().NoError(s.db.Create(top).Error)
	child := &models.Post{ThreadID: thread.ID, AuthorID: alice.ID, Body: "child", ParentPostID: &top.ID}
	s.Require().NoError(s.db.Create(child).Error)

	w := s.request(http.MethodPost, "/threads/"+thread.ID+"/posts", aliceToken, map[string]interface{}{
		"body":           "grandchild",
		"parent_post_id": child.ID,
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Equal(top.ID, s.decode(w)["post"].(map[string]interface{})["parent_post_id"])
}

func (s *HandlersTestSuite) TestCreatePostRejections() {
	alice, token := s.user("alice", models.RoleMember)
	thread := testutil.CreateThread(s.T(), s.db, alice, "Rules")
	other := testutil.CreateThread(s.T(), s.db, alice, "Elsewhere")
	foreign := &models.Post{ThreadID: other.ID, AuthorID: alice.ID, Body: "foreign"}
	s.Require().NoError(s.db.Create(foreign).Error)

	w := s.request(http.MethodPost, "/threads/missing/posts", token, map[string]interface{}{"body": "x"})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.request(http.MethodPost, "/threads/"+thread.ID+"/posts", token, map[string]interface{}{
		"body":           "x",
		"parent_post_id": foreign.ID,
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("parent_post_id", s.decode(w)["field"])

	w = s.request(http.MethodPost, "/threads/"+thread.ID+"/posts", token, map[string]interface{}{"body": "   "})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	for _, status := range []models.ThreadStatus{models.ThreadStatusLocked, models.ThreadStatusArchived} {
		s.Require().NoError(s.db.Model(thread).Update("status", status).Error)
		w = s.request(http.MethodPost, "/threads/"+thread.ID+"/posts", token, map[string]interface{}{"body": "x"})
		s.Equal(http.StatusLocked, w.Code)
		s.Equal("LOCKED", s.decode(w)["code"])
	}
}

func (s *HandlersTestSuite) TestCreatePostLosesToConcurrentLock() {
	alice, token := s.user("alice", models.RoleMember)
	thread := testutil.CreateThread(s.T(), s.db, alice, "Closing soon")

	// a moderator locks the thread after the handler has read it as open
	s.Require().NoError(s.db.Callback().Create().Before("gorm:create").Register("test:lock_thread", func(tx *gorm.DB) {
		if tx.Statement.Table != "posts" {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).Model(&models.Thread{}).
			Where("id = ?", thread.ID).Update("status", models.ThreadStatusLocked)
	}))

	w := s.request(http.MethodPost, "/threads/"+thread.ID+"/posts", token, map[string]interface{}{"body": "last word"})
	s.Equal(http.StatusLocked, w.Code, w.Body.String())
	s.Equal("LOCKED", s.decode(w)["code"])

	var posts int64
	s.Require().NoError(s.db.Model(&models.Post{}).Where("thread_id = ?", thread.ID).Count(&posts).Error)
	s.Zero(posts)
	s.Empty(s.realtime.ofType(websocket.EventPostCreated))
}

func (s *HandlersTestSuite) TestModerateThread() {
	alice, aliceToken := s.user("alice", models.RoleMember)
	_, modToken := s.user("mod", models.RoleModerator)
	thread := testutil.CreateThread(s.T(), s.db, alice, "Heated")
	path := "/threads/" + thread.ID + "/moderation"

	w := s.request(http.MethodPatch, path, aliceToken, map[string]string{"status": "locked"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodPatch, path, modToken, map[string]string{"status": "frozen"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.request(http.MethodPatch, path, modToken, map[string]string{"status": "locked", "reason": "off topic"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("locked", s.decode(w)["thread"].(map[string]interface{})["status"])

	notes := s.notificationsFor(alice.ID)
	s.Require().Len(notes, 1)
	s.Equal(models.NotificationModeration, notes[0].Type)

	var events int64
	s.db.Model(&models.SecurityEvent{}).Where("type = ?", models.EventThreadStatusModified).Count(&events)
	s.Equal(int64(1), events)
}

func (s *HandlersTestSuite) TestModeratePost() {
	alice, _ := s.user("alice", models.RoleMember)
	bob, bobToken := s.user("bob", models.RoleMember)
	_, adminToken := s.user("root", models.RoleAdmin)
	thread := testutil.CreateThread(s.T(), s.db, alice, "Posts")
	post := &models.Post{ThreadID: thread.ID, AuthorID: bob.ID, Body: "spam"}
	s.Require().NoError(s.db.Create(post).Error)
	path := "/posts/" + post.ID + "/moderation"

	w := s.request(http.MethodPatch, path, bobToken, map[string]string{"status": "hidden"})
	s.Equal(http.StatusForbidden, w.Code)

	// admins inherit moderator permissions
	w = s.request(http.MethodPatch, path, adminToken, map[string]string{"status": "hidden", "reason": "spam"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("hidden", s.decode(w)["post"].(map[string]interface{})["status"])
	s.Len(s.notificationsFor(bob.ID), 1)

	w = s.request(http.MethodPatch, "/posts/missing/moderation", adminToken, map[string]string{"status": "hidden"})
	s.Equal(http.StatusNotFound, w.Code)
}

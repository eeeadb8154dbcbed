package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "-")
	os.Exit(m.Run())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]string
}

func (p *recordingPublisher) SendEventToUser(userID, eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]string)
	}
	p.events[userID] = append(p.events[userID], eventType)
}

type ServiceTestSuite struct {
	suite.Suite
	svc       *Service
	publisher *recordingPublisher
	alice     *models.User
	bob       *models.User
	carol     *models.User
}

func (s *ServiceTestSuite) SetupTest() {
	db := testutil.NewDB(s.T())
	s.publisher = &recordingPublisher{}
	s.svc = NewService(db, s.publisher, nil)
	s.alice = testutil.CreateUser(s.T(), db, "alice", models.RoleMember)
	s.bob = testutil.CreateUser(s.T(), db, "bob", models.RoleMember)
	s.carol = testutil.CreateUser(s.T(), db, "carol", models.RoleMember)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) TestNotifyDedupesAndSkipsActor() {
	ctx := context.Background()
	created, err := s.svc.Notify(ctx, []Input{
		{UserID: s.bob.ID, ActorID: s.alice.ID, Type: models.NotificationPostReply, Title: "reply"},
		{UserID: s.bob.ID, ActorID: s.alice.ID, Type: models.NotificationThreadReply, Title: "thread reply"},
		{UserID: s.alice.ID, ActorID: s.alice.ID, Type: models.NotificationMention, Title: "self"},
		{UserID: s.carol.ID, ActorID: s.alice.ID, Type: models.NotificationMention, Title: "mention", ThreadID: "t1"},
	})
	s.Require().NoError(err)
	s.Require().Len(created, 2)

	s.Equal(models.NotificationPostReply, created[0].Type)
	s.Equal(s.carol.ID, created[1].UserID)
	s.Require().NotNil(created[1].ThreadID)
	s.Equal("t1", *created[1].ThreadID)

	s.Equal([]string{EventNotificationCreated}, s.publisher.events[s.bob.ID])
	s.Empty(s.publisher.events[s.alice.ID])
}

func (s *ServiceTestSuite) TestNotifyNothingToDo() {
	created, err := s.svc.Notify(context.Background(), []Input{{UserID: s.alice.ID, ActorID: s.alice.ID}})
	s.NoError(err)
	s.Empty(created)
}

func (s *ServiceTestSuite) TestListAndMarkRead() {
	ctx := context.Background()
	var inputs []Input
	for _, u := range []*models.User{s.alice, s.alice, s.alice} {
		inputs = append(inputs, Input{UserID: u.ID, Type: models.NotificationSystem, Title: "hello"})
	}
	// dedupe keeps one per call, so create three separately
	for _, in := range inputs {
		_, err := s.svc.Notify(ctx, []Input{in})
		s.Require().NoError(err)
	}

	items, total, unread, err := s.svc.List(ctx, s.alice.ID, false, 2, 0)
	s.Require().NoError(err)
	s.Len(items, 2)
	s.Equal(int64(3), total)
	s.Equal(int64(3), unread)

	updated, err := s.svc.MarkRead(ctx, s.alice.ID, []string{items[0].ID})
	s.Require().NoError(err)
	s.Equal(int64(1), updated)

	// already read and foreign ids are not counted
	updated, err = s.svc.MarkRead(ctx, s.bob.ID, []string{items[1].ID})
	s.Require().NoError(err)
	s.Equal(int64(0), updated)

	_, total, unread, err = s.svc.List(ctx, s.alice.ID, true, 20, 0)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Equal(int64(2), unread)

	updated, err = s.svc.MarkAllRead(ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), updated)

	unread, err = s.svc.UnreadCount(ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Zero(unread)
}

func (s *ServiceTestSuite) TestMarkOne() {
	ctx := context.Background()
	created, err := s.svc.Notify(ctx, []Input{{UserID: s.bob.ID, Type: models.NotificationSystem, Title: "hi"}})
	s.Require().NoError(err)

	_, err = s.svc.MarkOne(ctx, s.alice.ID, created[0].ID)
	s.ErrorIs(err, ErrNotFound)

	n, err := s.svc.MarkOne(ctx, s.bob.ID, created[0].ID)
	s.Require().NoError(err)
	s.True(n.IsRead)
	s.NotNil(n.ReadAt)
}

func TestDispatcherDelivers(t *testing.T) {
	var received atomic.Int32
	var lastEvent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		lastEvent.Store(payload.Event)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, DispatcherOptions{})
	for i := 0; i < 3; i++ {
		assert.True(t, d.Enqueue(&models.Notification{ID: "n", Type: models.NotificationSystem}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, int32(3), received.Load())
	assert.Equal(t, EventNotificationCreated, lastEvent.Load())
	assert.False(t, d.Enqueue(&models.Notification{ID: "late"}), "stopped dispatcher rejects work")
}

func TestDispatcherTripsBreaker(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, DispatcherOptions{OpenTimeout: time.Hour})
	for i := 0; i < 8; i++ {
		d.Enqueue(&models.Notification{ID: "n"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, int32(tripAfterFailures), received.Load())
	assert.Equal(t, gobreaker.StateOpen, d.State())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, DispatcherOptions{QueueSize: 1})
	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Enqueue(&models.Notification{ID: "n"}) {
			accepted++
		}
	}
	assert.Less(t, accepted, 5)

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

// eventServer accepts sockets on /ws and hands each one to the test
type eventServer struct {
	*httptest.Server
	conns  chan *websocket.Conn
	tokens chan string
	dials  atomic.Int32
}

func newEventServer(t *testing.T) *eventServer {
	t.Helper()
	es := &eventServer{
		conns:  make(chan *websocket.Conn, 8),
		tokens: make(chan string, 8),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	es.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		es.dials.Add(1)
		es.tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		es.conns <- conn
	}))
	t.Cleanup(es.Close)
	return es
}

func (es *eventServer) next(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-es.conns:
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber never connected")
		return nil
	}
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":      eventType,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))
}

func newTestSubscriber(url string) *Subscriber {
	return NewSubscriber(Config{
		BaseURL:            url,
		Token:              func() string { return "access-1" },
		HeartbeatInterval:  time.Hour,
		ReconnectBaseDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:  50 * time.Millisecond,
	})
}

func TestSubscriberDispatchesEvents(t *testing.T) {
	es := newEventServer(t)
	sub := newTestSubscriber(es.URL)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 3)
	record := func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
		done <- struct{}{}
	}
	sub.On(EventThreadCreated, record)
	sub.On(EventPostCreated, record)
	sub.On(EventNotificationCreated, record)

	sub.Start(context.Background())
	defer sub.Close()

	assert.Equal(t, "access-1", <-es.tokens)
	conn := es.next(t)
	defer conn.Close()

	send(t, conn, "pong", nil)
	send(t, conn, EventThreadCreated, map[string]string{"id": "t1"})
	send(t, conn, EventPostCreated, map[string]string{"id": "p1", "thread_id": "t1"})
	send(t, conn, EventNotificationCreated, map[string]string{"id": "n1"})

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{EventThreadCreated, EventPostCreated, EventNotificationCreated}, got)
	assert.Equal(t, int64(3), sub.Stats().EventsReceived)
	assert.Equal(t, StateConnected, sub.State())
}

func TestSubscriberReconnectsAfterDrop(t *testing.T) {
	es := newEventServer(t)
	sub := newTestSubscriber(es.URL)

	received := make(chan Event, 1)
	sub.On(EventThreadCreated, func(e Event) { received <- e })

	sub.Start(context.Background())
	defer sub.Close()

	first := es.next(t)
	require.NoError(t, first.Close())

	second := es.next(t)
	defer second.Close()
	send(t, second, EventThreadCreated, map[string]string{"id": "t2"})

	select {
	case e := <-received:
		var payload struct {
			ID string `json:"id"`
		}
		require.NoError(t, e.Decode(&payload))
		assert.Equal(t, "t2", payload.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no event after reconnect")
	}
	assert.GreaterOrEqual(t, sub.Stats().Reconnects, int64(1))
}

func TestCloseStopsReconnecting(t *testing.T) {
	es := newEventServer(t)
	sub := newTestSubscriber(es.URL)
	sub.Start(context.Background())

	conn := es.next(t)
	defer conn.Close()

	sub.Close()
	assert.Equal(t, StateClosed, sub.State())

	dials := es.dials.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, dials, es.dials.Load())
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	sub := newTestSubscriber("http://localhost")

	var calls int
	off := sub.On(EventThreadCreated, func(Event) { calls++ })
	sub.dispatch(Event{Type: EventThreadCreated})
	off()
	sub.dispatch(Event{Type: EventThreadCreated})

	assert.Equal(t, 1, calls)
}

func TestBackoffIsCapped(t *testing.T) {
	sub := NewSubscriber(Config{
		ReconnectBaseDelay: 100 * time.Millisecond,
		ReconnectMaxDelay:  time.Second,
	})

	assert.GreaterOrEqual(t, sub.backoff(0), 100*time.Millisecond)
	assert.Less(t, sub.backoff(0), 121*time.Millisecond)
	assert.GreaterOrEqual(t, sub.backoff(2), 400*time.Millisecond)
	for _, attempt := range []int{4, 10, 60} {
		d := sub.backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1201*time.Millisecond)
	}
}

func TestEndpointUsesWebsocketScheme(t *testing.T) {
	sub := NewSubscriber(Config{BaseURL: "https://api.example.com/", Token: func() string { return "a b" }})
	u, err := sub.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/ws?token=a+b", u)

	sub = NewSubscriber(Config{BaseURL: "http://localhost:8787"})
	u, err = sub.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8787/ws", u)
}

func TestKeysFor(t *testing.T) {
	tests := []struct {
		name string
		evt  Event
		want []string
	}{
		{"thread", Event{Type: EventThreadCreated}, []string{"threads"}},
		{"post", Event{Type: EventPostCreated, Payload: []byte(`{"thread_id":"t9"}`)}, []string{"threads/t9", "threads"}},
		{"post without thread", Event{Type: EventPostCreated, Payload: []byte(`{}`)}, []string{"threads"}},
		{"notification", Event{Type: EventNotificationCreated}, []string{"notifications"}},
		{"unknown", Event{Type: "system"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeysFor(tt.evt))
		})
	}
}

func TestInvalidatorDropsStaleReads(t *testing.T) {
	cache := client.NewCache(16, time.Minute)
	cache.Set("threads?limit=20", "list")
	cache.Set("threads/t1", "detail")
	cache.Set("threads/t2", "other")
	cache.Set("notifications?unread=true", "inbox")

	inv := NewInvalidator(cache, nil)

	inv.Handle(Event{Type: EventNotificationCreated})
	_, ok := cache.Get("notifications?unread=true")
	assert.False(t, ok)
	assert.Equal(t, 3, cache.Len())

	inv.Handle(Event{Type: EventPostCreated, Payload: []byte(`{"thread_id":"t1"}`)})
	assert.Equal(t, 0, cache.Len())
}

func TestInvalidatorAttach(t *testing.T) {
	cache := client.NewCache(16, time.Minute)
	cache.Set("notifications", "inbox")

	sub := newTestSubscriber("http://localhost")
	detach := NewInvalidator(cache, nil).Attach(sub)

	detach()
	sub.dispatch(Event{Type: EventNotificationCreated})
	assert.Equal(t, 1, cache.Len())

	NewInvalidator(cache, nil).Attach(sub)
	sub.dispatch(Event{Type: EventNotificationCreated})
	assert.Equal(t, 0, cache.Len())
}

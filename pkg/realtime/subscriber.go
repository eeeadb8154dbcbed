// Package realtime subscribes to the API's websocket event stream.
package realtime

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event types pushed by the server
const (
	EventThreadCreated       = "thread.created"
	EventPostCreated         = "post.created"
	EventNotificationCreated = "notification.created"

	typePing   = "ping"
	typePong   = "pong"
	typeSystem = "system"
	typeError  = "error"
)

// Event is one envelope from the server. Payload is left raw for the handler.
type Event struct {
	Type      string              `json:"type"`
	Payload   jsoniter.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Decode unmarshals the payload into v
func (e Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return errors.New("event has no payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// ConnectionState represents the state of the WebSocket connection
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "disconnected"
}

// Config holds WebSocket subscriber configuration
type Config struct {
	// BaseURL is the API root (http or https); the socket lives at /ws
	BaseURL string
	// Token returns the current access token; called on every dial so a
	// refreshed session is picked up on reconnect
	Token              func() string
	HeartbeatInterval  time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	Logger             *log.Logger
	Dialer             *websocket.Dialer
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		c.ReconnectMaxDelay = c.ReconnectBaseDelay
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr)
		c.Logger.SetLevel(log.WarnLevel)
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Stats holds connection statistics
type Stats struct {
	EventsReceived int64
	Reconnects     int64
	LastError      string
	ConnectedAt    time.Time
}

// Handler receives one event. Handlers run on the read goroutine in the
// order events arrive and should not block.
type Handler func(Event)

// Subscriber keeps a websocket open and dispatches events to handlers,
// reconnecting with capped exponential backoff when the connection drops.
type Subscriber struct {
	cfg   Config
	state atomic.Int32

	handlersMu sync.RWMutex
	handlers   map[string][]registration
	nextID     int

	connMu sync.Mutex
	conn   *websocket.Conn

	statsMu sync.Mutex
	stats   Stats

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a subscriber; call Start to connect
func NewSubscriber(cfg Config) *Subscriber {
	cfg.applyDefaults()
	return &Subscriber{
		cfg:      cfg,
		handlers: make(map[string][]registration),
	}
}

type registration struct {
	id int
	h  Handler
}

// On registers h for eventType. An empty eventType receives every event.
// The returned function removes the handler.
func (s *Subscriber) On(eventType string, h Handler) func() {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.nextID++
	id := s.nextID
	s.handlers[eventType] = append(s.handlers[eventType], registration{id: id, h: h})

	return func() {
		s.handlersMu.Lock()
		defer s.handlersMu.Unlock()
		regs := s.handlers[eventType]
		for i, r := range regs {
			if r.id == id {
				s.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Start connects in the background and keeps reconnecting until ctx ends
// or Close is called
func (s *Subscriber) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Close stops reconnecting, closes the socket and waits for the loop to exit
func (s *Subscriber) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.closeConn(websocket.CloseNormalClosure, "client closed")
	<-s.done
	s.setState(StateClosed)
}

func (s *Subscriber) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

func (s *Subscriber) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Subscriber) run(ctx context.Context) {
	defer close(s.done)

	attempt := 0
	for {
		if attempt == 0 {
			s.setState(StateConnecting)
		} else {
			s.setState(StateReconnecting)
		}

		err := s.session(ctx)
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}
		if err != nil {
			s.recordError(err)
			s.cfg.Logger.Debug("WebSocket disconnected", "error", err)
		}

		// a session that got connected resets the backoff
		if s.State() == StateConnected {
			attempt = 0
		}
		wait := s.backoff(attempt)
		attempt++
		s.statsMu.Lock()
		s.stats.Reconnects++
		s.statsMu.Unlock()
		s.setState(StateReconnecting)

		s.cfg.Logger.Debug("Reconnecting WebSocket", "attempt", attempt, "wait", wait)
		select {
		case <-ctx.Done():
			s.setState(StateDisconnected)
			return
		case <-time.After(wait):
		}
	}
}

// backoff doubles from the base delay per attempt, capped at the max, with
// up to 20% jitter added
func (s *Subscriber) backoff(attempt int) time.Duration {
	d := s.cfg.ReconnectBaseDelay
	for i := 0; i < attempt && d < s.cfg.ReconnectMaxDelay; i++ {
		d *= 2
	}
	if d > s.cfg.ReconnectMaxDelay {
		d = s.cfg.ReconnectMaxDelay
	}
	if jitter := int64(d) / 5; jitter > 0 {
		d += time.Duration(rand.Int63n(jitter))
	}
	return d
}

// session dials once and reads until the connection fails
func (s *Subscriber) session(ctx context.Context) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}

	conn, resp, err := s.cfg.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return errors.New("websocket rejected the access token")
		}
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer s.closeConn(websocket.CloseNormalClosure, "")

	// unblocks ReadJSON when the subscriber is closed
	stop := context.AfterFunc(ctx, func() {
		s.closeConn(websocket.CloseNormalClosure, "client closed")
	})
	defer stop()

	s.setState(StateConnected)
	s.statsMu.Lock()
	s.stats.ConnectedAt = time.Now()
	s.statsMu.Unlock()
	s.cfg.Logger.Debug("WebSocket connected", "url", s.cfg.BaseURL)

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go s.heartbeat(heartbeatCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			s.cfg.Logger.Warn("Dropping malformed event", "error", err)
			continue
		}
		s.dispatch(evt)
	}
}

func (s *Subscriber) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			err := conn.WriteJSON(map[string]interface{}{
				"type":    typePing,
				"payload": map[string]int64{"client_time": time.Now().UnixMilli()},
			})
			s.connMu.Unlock()
			if err != nil {
				s.cfg.Logger.Debug("Failed to send heartbeat", "error", err)
				return
			}
		}
	}
}

func (s *Subscriber) dispatch(evt Event) {
	switch evt.Type {
	case typePong:
		return
	case typeSystem, typeError:
		s.cfg.Logger.Debug("WebSocket control message", "type", evt.Type, "payload", string(evt.Payload))
	}

	s.statsMu.Lock()
	s.stats.EventsReceived++
	s.statsMu.Unlock()

	s.handlersMu.RLock()
	regs := make([]registration, 0, len(s.handlers[evt.Type])+len(s.handlers[""]))
	regs = append(regs, s.handlers[evt.Type]...)
	regs = append(regs, s.handlers[""]...)
	s.handlersMu.RUnlock()

	for _, r := range regs {
		r.h(evt)
	}
}

func (s *Subscriber) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"

	if s.cfg.Token != nil {
		if token := s.cfg.Token(); token != "" {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}

func (s *Subscriber) closeConn(code int, reason string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = s.conn.Close()
	s.conn = nil
}

func (s *Subscriber) setState(state ConnectionState) {
	s.state.Store(int32(state))
}

func (s *Subscriber) recordError(err error) {
	s.statsMu.Lock()
	s.stats.LastError = err.Error()
	s.statsMu.Unlock()
}

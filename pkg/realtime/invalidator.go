package realtime

import (
	"github.com/charmbracelet/log"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

// Invalidator drops cached reads that a realtime event made stale
type Invalidator struct {
	cache  *client.Cache
	logger *log.Logger
}

func NewInvalidator(cache *client.Cache, logger *log.Logger) *Invalidator {
	return &Invalidator{cache: cache, logger: logger}
}

// Attach registers the invalidator on every event type it handles and
// returns a function that detaches it
func (inv *Invalidator) Attach(s *Subscriber) func() {
	offs := []func(){
		s.On(EventThreadCreated, inv.Handle),
		s.On(EventPostCreated, inv.Handle),
		s.On(EventNotificationCreated, inv.Handle),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Handle invalidates the cache keys for evt
func (inv *Invalidator) Handle(evt Event) {
	if inv.cache == nil {
		return
	}
	for _, prefix := range KeysFor(evt) {
		n := inv.cache.Invalidate(prefix)
		if inv.logger != nil && n > 0 {
			inv.logger.Debug("Invalidated cached reads", "event", evt.Type, "prefix", prefix, "entries", n)
		}
	}
}

// KeysFor maps an event to the cache key prefixes it makes stale.
// A post.created without a readable thread id falls back to every thread.
func KeysFor(evt Event) []string {
	switch evt.Type {
	case EventThreadCreated:
		return []string{"threads"}
	case EventPostCreated:
		var post struct {
			ThreadID string `json:"thread_id"`
		}
		if err := evt.Decode(&post); err != nil || post.ThreadID == "" {
			return []string{"threads"}
		}
		return []string{"threads/" + post.ThreadID, "threads"}
	case EventNotificationCreated:
		return []string{"notifications"}
	}
	return nil
}

package middleware

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultViolationCapacity = 100
	violationAuditInterval   = time.Minute
)

// Violation aggregates rejections for one client key on one path
type Violation struct {
	Key      string    `json:"key"`
	Path     string    `json:"path"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`

	lastAudit time.Time
}

// ViolationLog keeps the most recent rate-limit rejections for the admin API
type ViolationLog struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*Violation
}

func NewViolationLog(capacity int) *ViolationLog {
	if capacity <= 0 {
		capacity = defaultViolationCapacity
	}
	return &ViolationLog{capacity: capacity, entries: make(map[string]*Violation)}
}

// Add counts a rejection. It returns true when the rejection should be
// audited: the first for key and path, then at most once a minute.
func (v *ViolationLog) Add(key, path string, at time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := key + " " + path
	entry, ok := v.entries[id]
	if !ok {
		if len(v.entries) >= v.capacity {
			v.evictOldest()
		}
		entry = &Violation{Key: key, Path: path}
		v.entries[id] = entry
	}
	entry.Count++
	entry.LastSeen = at

	if entry.lastAudit.IsZero() || at.Sub(entry.lastAudit) >= violationAuditInterval {
		entry.lastAudit = at
		return true
	}
	return false
}

func (v *ViolationLog) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, e := range v.entries {
		if oldestID == "" || e.LastSeen.Before(oldest) {
			oldestID, oldest = id, e.LastSeen
		}
	}
	delete(v.entries, oldestID)
}

// Recent returns up to limit violations, most recent first
func (v *ViolationLog) Recent(limit int) []Violation {
	v.mu.Lock()
	out := make([]Violation, 0, len(v.entries))
	for _, e := range v.entries {
		out = append(out, *e)
	}
	v.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

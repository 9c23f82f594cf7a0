// Package pending tracks requests that are waiting for a follow-up message.
package pending

import (
	"sync"
	"time"

	"tomcat/internal/model"
)

// Status is the outcome of a Take.
type Status int

// Take outcomes.
const (
	Missing Status = iota
	Found
	Expired
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Expired:
		return "expired"
	default:
		return "missing"
	}
}

// Key scopes a pending record to one user in one channel.
type Key struct {
	ChannelID string
	UserID    string
}

// Record is an outstanding request.
type Record struct {
	Key       Key
	Kind      model.IntentKind
	Stations  []string
	MessageID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is stale at now.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Tracker holds at most one vision and one feed record per key.
type Tracker struct {
	mu     sync.Mutex
	vision map[Key]Record
	feed   map[Key]Record
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		vision: make(map[Key]Record),
		feed:   make(map[Key]Record),
	}
}

// SetVision registers a vision command awaiting an image. An existing record is replaced.
func (t *Tracker) SetVision(key Key, kind model.IntentKind, messageID string, ttl time.Duration, now time.Time) Record {
	return t.set(t.vision, Record{Key: key, Kind: kind, MessageID: messageID}, ttl, now)
}

// SetFeed registers stations awaiting a confirming image. An existing record is replaced.
func (t *Tracker) SetFeed(key Key, stations []string, messageID string, ttl time.Duration, now time.Time) Record {
	rec := Record{Key: key, Kind: model.IntentFeedUpdate, Stations: append([]string(nil), stations...), MessageID: messageID}
	return t.set(t.feed, rec, ttl, now)
}

// TakeVision removes and returns the vision record for key.
func (t *Tracker) TakeVision(key Key, now time.Time) (Record, Status) {
	return t.take(t.vision, key, now)
}

// TakeFeed removes and returns the feed record for key.
func (t *Tracker) TakeFeed(key Key, now time.Time) (Record, Status) {
	return t.take(t.feed, key, now)
}

// PeekVision returns the vision record for key without consuming it.
func (t *Tracker) PeekVision(key Key) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.vision[key]
	return r, ok
}

// PeekFeed returns the feed record for key without consuming it.
func (t *Tracker) PeekFeed(key Key) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.feed[key]
	return r, ok
}

func (t *Tracker) set(m map[Key]Record, rec Record, ttl time.Duration, now time.Time) Record {
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)

	t.mu.Lock()
	defer t.mu.Unlock()
	m[rec.Key] = rec
	return rec
}

// take is the atomic read-and-delete; an expired record is deleted too.
func (t *Tracker) take(m map[Key]Record, key Key, now time.Time) (Record, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := m[key]
	if !ok {
		return Record{}, Missing
	}
	delete(m, key)
	if rec.Expired(now) {
		return rec, Expired
	}
	return rec, Found
}

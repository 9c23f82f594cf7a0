// Package contextbuf keeps a short per-user history of recent messages in each channel.
package contextbuf

import (
	"regexp"
	"sync"
	"time"

	"tomcat/internal/model"
)

// DefaultCapacity is the number of rows kept per (channel, user).
const DefaultCapacity = 100

// SubRequestRe matches messages asking for a feeding substitute.
var SubRequestRe = regexp.MustCompile(`(?i)\b(sub|cover|cover\s+me|can\s+someone|anyone\s+able)\b`)

type key struct {
	channelID string
	userID    string
}

// queue is a bounded FIFO of rows, oldest first.
type queue struct {
	rows []model.MachineRow
	cap  int
}

func (q *queue) push(r model.MachineRow) {
	if len(q.rows) == q.cap {
		copy(q.rows, q.rows[1:])
		q.rows = q.rows[:len(q.rows)-1]
	}
	q.rows = append(q.rows, r)
}

// Buffer is a set of bounded per-(channel, user) queues.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	queues   map[key]*queue
}

// New creates a Buffer holding at most capacity rows per key.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, queues: make(map[key]*queue)}
}

// Push appends a row, evicting the oldest one for its key when full.
func (b *Buffer) Push(r model.MachineRow) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{r.ChannelID, r.UserID}
	q, ok := b.queues[k]
	if !ok {
		q = &queue{rows: make([]model.MachineRow, 0, 8), cap: b.capacity}
		b.queues[k] = q
	}
	q.push(r)
}

// LastImageForUser returns the newest image-bearing row of user in channel
// whose timestamp is within the window ending at now.
func (b *Buffer) LastImageForUser(channelID, userID string, within time.Duration, now time.Time) (model.MachineRow, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[key{channelID, userID}]
	if !ok {
		return model.MachineRow{}, false
	}
	cutoff := now.Add(-within)
	for i := len(q.rows) - 1; i >= 0; i-- {
		r := q.rows[i]
		if r.Timestamp.Before(cutoff) {
			return model.MachineRow{}, false
		}
		if r.HasImage {
			return r, true
		}
	}
	return model.MachineRow{}, false
}

// RecentSubRequestInChannel reports whether any retained row in channel reads as a sub request.
// The row of exceptMessageID, usually the message being classified, is skipped.
func (b *Buffer) RecentSubRequestInChannel(channelID, exceptMessageID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, q := range b.queues {
		if k.channelID != channelID {
			continue
		}
		for i := len(q.rows) - 1; i >= 0; i-- {
			r := q.rows[i]
			if r.MessageID != exceptMessageID && SubRequestRe.MatchString(r.TextNorm) {
				return true
			}
		}
	}
	return false
}

// Len returns the number of rows retained for (channel, user).
func (b *Buffer) Len(channelID, userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.queues[key{channelID, userID}]; ok {
		return len(q.rows)
	}
	return 0
}

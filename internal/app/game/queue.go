package game

import (
	"sync"

	"pongrt/internal/app/presence"
)

// Queue is the FIFO matchmaking queue.
type Queue struct {
	mu      sync.Mutex
	entries []presence.Conn

	// alive filters out connections that closed while waiting.
	alive func(presence.Conn) bool
}

// NewQueue returns an empty queue. alive may be nil, in which case every entry is considered live.
func NewQueue(alive func(presence.Conn) bool) *Queue {
	if alive == nil {
		alive = func(presence.Conn) bool { return true }
	}
	return &Queue{alive: alive}
}

// Join enqueues c and pairs the two longest waiting live connections when possible.
// Joining twice with the same connection is a no-op; a newer connection of a queued user replaces the old entry.
func (q *Queue) Join(c presence.Conn) (pair [2]presence.Conn, matched bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := c.Identity().ID
	queued := false
	for i, e := range q.entries {
		if e.Identity().ID != id {
			continue
		}
		q.entries[i] = c
		queued = true
		break
	}
	if !queued {
		q.entries = append(q.entries, c)
	}

	q.prune()
	if len(q.entries) < 2 {
		return pair, false
	}

	pair = [2]presence.Conn{q.entries[0], q.entries[1]}
	q.entries = append(q.entries[:0:0], q.entries[2:]...)
	return pair, true
}

// Leave removes c if it is still queued.
func (q *Queue) Leave(c presence.Conn) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e == c {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether user id is queued.
func (q *Queue) Contains(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.Identity().ID == id {
			return true
		}
	}
	return false
}

// Len returns the number of queued connections.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) prune() {
	live := q.entries[:0]
	for _, e := range q.entries {
		if q.alive(e) {
			live = append(live, e)
		}
	}
	clear(q.entries[len(live):])
	q.entries = live
}

package presence

import (
	"sort"
	"sync"

	"pongrt/internal/app/user"
)

// Lobby is the set of users browsing the lobby list. It is independent of Registry.
type Lobby struct {
	mu      sync.RWMutex
	members map[int64]Conn
}

// NewLobby returns an empty Lobby.
func NewLobby() *Lobby {
	return &Lobby{members: make(map[int64]Conn)}
}

// Subscribe adds c. It reports false when c was already subscribed.
func (l *Lobby) Subscribe(c Conn) bool {
	id := c.Identity().ID

	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.members[id]; ok && current == c {
		return false
	}
	l.members[id] = c
	return true
}

// Unsubscribe removes c if it is the subscribed connection of its user.
func (l *Lobby) Unsubscribe(c Conn) bool {
	id := c.Identity().ID

	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.members[id]; ok && current == c {
		delete(l.members, id)
		return true
	}
	return false
}

// IsSubscribed reports whether user id is in the lobby.
func (l *Lobby) IsSubscribed(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.members[id]
	return ok
}

// Count returns the number of subscribers.
func (l *Lobby) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.members)
}

// Members returns the identities of all subscribers ordered by user id.
func (l *Lobby) Members() []user.Identity {
	l.mu.RLock()
	out := make([]user.Identity, 0, len(l.members))
	for _, c := range l.members {
		out = append(out, c.Identity())
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Conns returns the subscribed connections.
func (l *Lobby) Conns() []Conn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Conn, 0, len(l.members))
	for _, c := range l.members {
		out = append(out, c)
	}
	return out
}

/*
Package presence tracks which users are connected and which of them browse the lobby.

The Registry is the single owner of the user id -> connection mapping and enforces one live
connection per user: registering a second connection kicks the first one. Lobby membership is a
separate sub-registry so a user can be online without being listed.
*/
package presence

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"pongrt/internal/app/protocol"
	"pongrt/internal/app/user"
	"pongrt/internal/pkg/logx"
)

// KickReasonReplaced is sent to a connection superseded by a newer one for the same user.
const KickReasonReplaced = "Session replaced by a new connection."

// Conn is a live realtime connection as seen by presence.
type Conn interface {
	// Identity returns the verified identity bound to the connection.
	Identity() user.Identity
	// Send queues msg for delivery. It must not block.
	Send(msg any) error
	// Kick tells the peer why and closes the connection. It must be safe to call more than once.
	Kick(reason string)
}

// Registry maps user ids to their current connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]Conn
	logger zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[int64]Conn),
		logger: logx.Component("presence"),
	}
}

// Register makes c the live connection of its user and announces it to everyone.
// A different connection previously held by the same user is kicked and returned.
func (r *Registry) Register(c Conn) Conn {
	identity := c.Identity()

	r.mu.Lock()
	stale, existed := r.conns[identity.ID]
	r.conns[identity.ID] = c
	r.mu.Unlock()

	// The stale connection's close path calls Unregister, so the kick happens outside the lock.
	if existed && stale != c {
		r.logger.Info().Int64("user_id", identity.ID).Msg("Replacing existing connection")
		stale.Kick(KickReasonReplaced)
	} else {
		stale = nil
	}

	r.Broadcast(protocol.UserOnline{
		Type:   protocol.TypeUserOnline,
		UserID: identity.ID,
		Name:   identity.Name(),
	})
	return stale
}

// Unregister removes c if it is still the live connection of its user.
// It reports whether the mapping was removed, in which case user:offline is broadcast.
func (r *Registry) Unregister(c Conn) bool {
	id := c.Identity().ID

	r.mu.Lock()
	current, ok := r.conns[id]
	removed := ok && current == c
	if removed {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if !removed {
		r.logger.Debug().Int64("user_id", id).Msg("Ignoring unregister from superseded connection")
		return false
	}

	r.Broadcast(protocol.UserOffline{Type: protocol.TypeUserOffline, UserID: id})
	return true
}

// IsOnline reports whether id has a live connection.
func (r *Registry) IsOnline(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Get returns the live connection of id.
func (r *Registry) Get(id int64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// IsCurrent reports whether c is the live connection of its user.
func (r *Registry) IsCurrent(c Conn) bool {
	current, ok := r.Get(c.Identity().ID)
	return ok && current == c
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Statuses reports online state for each id.
func (r *Registry) Statuses(ids []int64) map[int64]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		_, out[id] = r.conns[id]
	}
	return out
}

// OnlineIDs returns the ids of all online users in ascending order.
func (r *Registry) OnlineIDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns the current connections. The slice is a copy.
func (r *Registry) Snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast sends msg to every online connection.
func (r *Registry) Broadcast(msg any) {
	SendAll(r.logger, r.Snapshot(), msg)
}

// SendAll delivers msg to each conn, logging failures.
func SendAll(logger zerolog.Logger, conns []Conn, msg any) {
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			logger.Debug().Err(err).Int64("user_id", c.Identity().ID).Msg("Dropped broadcast")
		}
	}
}

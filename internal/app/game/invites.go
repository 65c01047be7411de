package game

import (
	"sync"
	"time"

	"pongrt/internal/pkg/clock"
)

// DefaultInviteTTL is how long an unanswered invitation stays pending.
const DefaultInviteTTL = 30 * time.Second

// Invitation is a pending invite from one user to another.
type Invitation struct {
	From      int64
	To        int64
	CreatedAt time.Time
}

type inviteKey struct {
	from, to int64
}

// InviteBook holds pending invitations.
type InviteBook struct {
	mu      sync.Mutex
	pending map[inviteKey]Invitation
	ttl     time.Duration
	clock   clock.Clock
}

// NewInviteBook returns an empty book. Non-positive ttl uses DefaultInviteTTL.
func NewInviteBook(ttl time.Duration, clk clock.Clock) *InviteBook {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &InviteBook{
		pending: make(map[inviteKey]Invitation),
		ttl:     ttl,
		clock:   clk,
	}
}

// Add records an invitation, refreshing an existing one between the same users.
func (b *InviteBook) Add(from, to int64) Invitation {
	inv := Invitation{From: from, To: to, CreatedAt: b.clock.Now()}

	b.mu.Lock()
	b.pending[inviteKey{from, to}] = inv
	b.mu.Unlock()
	return inv
}

// Take removes and returns the pending invitation from -> to. Expired invitations are not returned.
func (b *InviteBook) Take(from, to int64) (Invitation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := inviteKey{from, to}
	inv, ok := b.pending[key]
	if !ok {
		return Invitation{}, false
	}
	delete(b.pending, key)
	if b.expired(inv) {
		return Invitation{}, false
	}
	return inv, true
}

// DropUser removes every invitation sent or received by id.
func (b *InviteBook) DropUser(id int64) []Invitation {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dropped []Invitation
	for key, inv := range b.pending {
		if key.from == id || key.to == id {
			dropped = append(dropped, inv)
			delete(b.pending, key)
		}
	}
	return dropped
}

// Expire removes and returns invitations older than the TTL.
func (b *InviteBook) Expire() []Invitation {
	b.mu.Lock()
	defer b.mu.Unlock()

	var expired []Invitation
	for key, inv := range b.pending {
		if b.expired(inv) {
			expired = append(expired, inv)
			delete(b.pending, key)
		}
	}
	return expired
}

// Len returns the number of pending invitations.
func (b *InviteBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *InviteBook) expired(inv Invitation) bool {
	return !b.clock.Now().Before(inv.CreatedAt.Add(b.ttl))
}

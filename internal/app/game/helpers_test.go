package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"pongrt/internal/app/presence"
	"pongrt/internal/app/protocol"
	"pongrt/internal/app/user"
)

type sentMessage struct {
	typ protocol.Type
	msg any
}

// fakeConn records everything sent to it.
type fakeConn struct {
	identity user.Identity

	mu     sync.Mutex
	sent   []sentMessage
	kicked bool
}

func newFakeConn(id int64) *fakeConn {
	return &fakeConn{identity: user.Identity{ID: id, Token: fmt.Sprintf("token-%d", id)}}
}

func namedConn(id int64, name string) *fakeConn {
	c := newFakeConn(id)
	c.identity.DisplayName = &name
	return c
}

func (c *fakeConn) Identity() user.Identity { return c.identity }

func (c *fakeConn) Send(msg any) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var envelope struct {
		Type protocol.Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{typ: envelope.Type, msg: msg})
	return nil
}

func (c *fakeConn) Kick(string) {
	c.mu.Lock()
	c.kicked = true
	c.mu.Unlock()
}

func (c *fakeConn) all() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func (c *fakeConn) ofType(typ protocol.Type) []any {
	var out []any
	for _, m := range c.all() {
		if m.typ == typ {
			out = append(out, m.msg)
		}
	}
	return out
}

func (c *fakeConn) count(typ protocol.Type) int {
	return len(c.ofType(typ))
}

func (c *fakeConn) last(typ protocol.Type) any {
	msgs := c.ofType(typ)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// indexOf returns the position of the first message of typ, or -1.
func (c *fakeConn) indexOf(typ protocol.Type) int {
	for i, m := range c.all() {
		if m.typ == typ {
			return i
		}
	}
	return -1
}

var _ presence.Conn = (*fakeConn)(nil)

// testSettings keeps every window long enough not to interfere unless a test shortens it.
func testSettings() RoomSettings {
	s := DefaultRoomSettings()
	s.JoinWindow = time.Minute
	s.RematchWindow = time.Minute
	return s
}

func newTestHub(t *testing.T, opts ...ManagerOption) (*Hub, *RoomManager) {
	t.Helper()

	rooms := NewRoomManager(testSettings(), opts...)
	t.Cleanup(rooms.Shutdown)

	hub := NewHub(HubDeps{
		Registry: presence.NewRegistry(),
		Lobby:    presence.NewLobby(),
		Names:    presence.NewNames(presence.NewMemoryNameStore(), nil),
		Invites:  NewInviteBook(DefaultInviteTTL, nil),
		Rooms:    rooms,
	})
	return hub, rooms
}

func dispatch(t *testing.T, h *Hub, c presence.Conn, raw string) {
	t.Helper()
	if err := h.Dispatch(c, []byte(raw)); err != nil {
		t.Fatalf("dispatch %s: %v", raw, err)
	}
}

/*
Package game coordinates live play: it owns the connection type, routes inbound messages,
pairs players through invitations or the matchmaking queue, and runs one goroutine per room
with the authoritative physics loop and round timer.
*/
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pongrt/internal/app/presence"
	"pongrt/internal/app/protocol"
	"pongrt/internal/app/user"
	"pongrt/internal/pkg/errs"
	"pongrt/internal/pkg/logx"
)

const nameLookupTimeout = 5 * time.Second

// Hub routes messages between connections, presence, the pairing paths and rooms.
type Hub struct {
	registry *presence.Registry
	lobby    *presence.Lobby
	names    *presence.Names
	queue    *Queue
	invites  *InviteBook
	rooms    *RoomManager

	logger zerolog.Logger
}

// HubDeps are the collaborators of a Hub.
type HubDeps struct {
	Registry *presence.Registry
	Lobby    *presence.Lobby
	Names    *presence.Names
	Invites  *InviteBook
	Rooms    *RoomManager
}

// NewHub wires a hub. The matchmaking queue skips connections the registry no longer holds.
func NewHub(deps HubDeps) *Hub {
	h := &Hub{
		registry: deps.Registry,
		lobby:    deps.Lobby,
		names:    deps.Names,
		invites:  deps.Invites,
		rooms:    deps.Rooms,
		logger:   logx.Component("hub"),
	}
	h.queue = NewQueue(h.registry.IsCurrent)
	return h
}

// Stats is the snapshot served by the stats endpoint.
type Stats struct {
	Online  int            `json:"online"`
	Lobby   int            `json:"lobby"`
	Queued  int            `json:"queued"`
	Invites int            `json:"invites"`
	Rooms   map[string]int `json:"rooms"`
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Online:  h.registry.Count(),
		Lobby:   h.lobby.Count(),
		Queued:  h.queue.Len(),
		Invites: h.invites.Len(),
		Rooms:   h.rooms.Stats(),
	}
}

// Registry exposes the presence registry for read-only endpoints.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// Connect registers a freshly verified connection and greets it.
func (h *Hub) Connect(c presence.Conn) {
	identity := c.Identity()
	h.registry.Register(c)

	h.send(c, protocol.Welcome{
		Type:   protocol.TypeWelcome,
		UserID: identity.ID,
		Name:   identity.DisplayName,
	})

	go h.hydrateName(identity)
}

func (h *Hub) hydrateName(identity user.Identity) {
	defer logx.Recover(h.logger, "hydrate name")

	ctx, cancel := context.WithTimeout(context.Background(), nameLookupTimeout)
	defer cancel()
	h.names.Hydrate(ctx, identity)
}

// Disconnect detaches c from everything it takes part in. It is safe to call more than once.
func (h *Hub) Disconnect(c presence.Conn) {
	identity := c.Identity()

	if h.lobby.Unsubscribe(c) {
		h.broadcastLobby()
	}
	h.queue.Leave(c)

	if h.registry.Unregister(c) {
		if dropped := h.invites.DropUser(identity.ID); len(dropped) > 0 {
			h.logger.Debug().Int64("user_id", identity.ID).Int("count", len(dropped)).Msg("Dropped invitations of disconnected user")
		}
	}

	h.rooms.Leave(c)
}

// Dispatch decodes one inbound frame from c and handles it.
// Malformed frames and unknown types are returned as errors for the caller to log; the connection stays open.
func (h *Hub) Dispatch(c presence.Conn, raw []byte) error {
	msg, typ, err := protocol.Decode(raw)
	if err != nil {
		return err
	}

	defer logx.Recover(h.logger.With().Int64("user_id", c.Identity().ID).Str("msg_type", string(typ)).Logger(), "dispatch")

	switch m := msg.(type) {
	case protocol.LobbyJoin:
		h.handleLobbyJoin(c)
	case protocol.LobbyLeave:
		h.handleLobbyLeave(c)
	case protocol.UserListRequest:
		h.send(c, h.lobbyList())
	case protocol.FriendsSubscribe:
		h.handleFriends(c, m)
	case protocol.InviteSend:
		h.handleInvite(c, int64(m.To))
	case protocol.InviteAccept:
		h.handleInviteAccept(c, int64(m.From))
	case protocol.InviteDecline:
		h.handleInviteDecline(c, int64(m.From))
	case protocol.MatchmakingJoin:
		h.handleMatchmakingJoin(c)
	case protocol.MatchmakingLeave:
		h.queue.Leave(c)
	case protocol.GameJoin:
		h.withRoom(c, typ, m.RoomID, func(r *Room) { r.Join(c) })
	case protocol.GameMove:
		pressed, _ := m.Pressed()
		h.withRoom(c, typ, m.RoomID, func(r *Room) { r.Input(c, m.Direction, pressed) })
	case protocol.GameBegin:
		h.withRoom(c, typ, m.RoomID, func(r *Room) { r.Begin(c) })
	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnknownType, msg)
	}
	return nil
}

func (h *Hub) withRoom(c presence.Conn, typ protocol.Type, roomID string, fn func(r *Room)) {
	room, ok := h.rooms.Get(roomID)
	if !ok {
		h.logger.Debug().Int64("user_id", c.Identity().ID).Str("msg_type", string(typ)).Str("room_id", roomID).Msg("Message for unknown room ignored")
		return
	}
	fn(room)
}

func (h *Hub) handleLobbyJoin(c presence.Conn) {
	h.queue.Leave(c)
	h.lobby.Subscribe(c)
	h.broadcastLobby()
}

func (h *Hub) handleLobbyLeave(c presence.Conn) {
	if h.lobby.Unsubscribe(c) {
		h.broadcastLobby()
	}
}

func (h *Hub) lobbyList() protocol.UserList {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	members := h.lobby.Members()
	names := h.names.NamesOf(ctx, members)
	users := make([]protocol.LobbyUser, 0, len(members))
	for _, m := range members {
		users = append(users, protocol.LobbyUser{ID: m.ID, Name: names[m.ID]})
	}
	return protocol.UserList{Type: protocol.TypeUserList, Users: users}
}

func (h *Hub) broadcastLobby() {
	presence.SendAll(h.logger, h.lobby.Conns(), h.lobbyList())
}

func (h *Hub) handleFriends(c presence.Conn, m protocol.FriendsSubscribe) {
	ids := make([]int64, 0, len(m.FriendIDs))
	for _, id := range m.FriendIDs {
		ids = append(ids, int64(id))
	}
	h.send(c, protocol.FriendsStatus{
		Type:     protocol.TypeFriendsStatus,
		Statuses: h.registry.Statuses(ids),
	})
}

func (h *Hub) handleInvite(c presence.Conn, to int64) {
	from := c.Identity()

	if to == from.ID {
		h.inviteError(c, to, errs.NewError(errs.ErrInviteSelf))
		return
	}

	target, ok := h.registry.Get(to)
	if !ok {
		h.inviteError(c, to, errs.NewError(errs.ErrInviteTargetOffline, to))
		return
	}

	if h.inMatch(from.ID) || h.inMatch(to) {
		h.inviteError(c, to, errs.NewError(errs.ErrAlreadyInMatch))
		return
	}

	h.invites.Add(from.ID, to)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.send(target, protocol.InviteReceived{
		Type:     protocol.TypeInviteReceived,
		From:     from.ID,
		FromName: h.names.NameOf(ctx, from),
	})
	h.logger.Info().Int64("from", from.ID).Int64("to", to).Msg("Invitation sent")
}

func (h *Hub) handleInviteAccept(c presence.Conn, from int64) {
	to := c.Identity().ID

	if _, ok := h.invites.Take(from, to); !ok {
		h.sendError(c, errs.NewError(errs.ErrInviteNotFound))
		return
	}

	inviter, ok := h.registry.Get(from)
	if !ok {
		h.inviteError(c, from, errs.NewError(errs.ErrInviteTargetOffline, from))
		return
	}

	room, err := h.rooms.Create(ModeInvite, inviter, c)
	if err != nil {
		h.roomCreateFailed(err, inviter, c)
		return
	}

	h.startMatch(room, inviter, c)
}

func (h *Hub) handleInviteDecline(c presence.Conn, from int64) {
	to := c.Identity().ID

	if _, ok := h.invites.Take(from, to); !ok {
		h.logger.Debug().Int64("from", from).Int64("to", to).Msg("Decline for unknown invitation ignored")
		return
	}

	if inviter, ok := h.registry.Get(from); ok {
		h.send(inviter, protocol.InviteDeclinedNotice{Type: protocol.TypeInviteDeclined, UserID: to})
	}
}

func (h *Hub) handleMatchmakingJoin(c presence.Conn) {
	if h.inMatch(c.Identity().ID) {
		h.sendError(c, errs.NewError(errs.ErrAlreadyInMatch))
		return
	}

	if h.lobby.Unsubscribe(c) {
		h.broadcastLobby()
	}

	pair, matched := h.queue.Join(c)
	if !matched {
		return
	}

	room, err := h.rooms.Create(ModeMatchmaking, pair[0], pair[1])
	if err != nil {
		h.roomCreateFailed(err, pair[0], pair[1])
		return
	}

	h.startMatch(room, pair[0], pair[1])
}

func (h *Hub) startMatch(room *Room, a, b presence.Conn) {
	h.queue.Leave(a)
	h.queue.Leave(b)

	msg := protocol.RoomStart{
		Type:    protocol.TypeRoomStart,
		RoomID:  room.ID,
		Players: room.Players(),
		Mode:    string(room.Mode),
	}
	h.send(a, msg)
	h.send(b, msg)

	h.logger.Info().Str("room_id", room.ID).Ints64("players", msg.Players).Str("mode", msg.Mode).Msg("Match allocated")
}

func (h *Hub) roomCreateFailed(err error, conns ...presence.Conn) {
	h.logger.Warn().Err(err).Msg("Room allocation failed")

	customErr := errs.NewError(errs.ErrUnknown)
	if errors.Is(err, ErrAlreadyInMatch) {
		customErr = errs.NewError(errs.ErrAlreadyInMatch)
	}
	for _, c := range conns {
		h.sendError(c, customErr)
	}
}

func (h *Hub) inMatch(userID int64) bool {
	_, ok := h.rooms.RoomOf(userID)
	return ok
}

// SweepInvites expires stale invitations and tells each inviter. It runs on the scheduler.
func (h *Hub) SweepInvites() int {
	expired := h.invites.Expire()
	for _, inv := range expired {
		if inviter, ok := h.registry.Get(inv.From); ok {
			h.send(inviter, protocol.InviteExpired{Type: protocol.TypeInviteExpired, To: inv.To})
		}
	}
	if len(expired) > 0 {
		h.logger.Info().Int("count", len(expired)).Msg("Expired invitations")
	}
	return len(expired)
}

func (h *Hub) inviteError(c presence.Conn, to int64, customErr *errs.CustomError) {
	h.logger.Info().Int64("from", c.Identity().ID).Int64("to", to).Int("code", customErr.Code).Msg("Invitation rejected")
	h.send(c, protocol.InviteError{
		Type:    protocol.TypeInviteError,
		To:      to,
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

func (h *Hub) sendError(c presence.Conn, customErr *errs.CustomError) {
	h.send(c, protocol.Error{Type: protocol.TypeError, Code: customErr.Code, Message: customErr.Message})
}

func (h *Hub) send(c presence.Conn, msg any) {
	if err := c.Send(msg); err != nil {
		h.logger.Debug().Err(err).Int64("user_id", c.Identity().ID).Msg("Send failed")
	}
}

package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongrt/internal/app/presence"
	"pongrt/internal/app/protocol"
	"pongrt/internal/pkg/clock"
	"pongrt/internal/pkg/errs"
)

func TestMatchmakingPairsFirstTwoPlayers(t *testing.T) {
	hub, rooms := newTestHub(t)
	c1, c2 := newFakeConn(1), newFakeConn(2)
	hub.Connect(c1)
	hub.Connect(c2)

	dispatch(t, hub, c1, `{"type":"matchmaking:join"}`)
	assert.Zero(t, c1.count(protocol.TypeRoomStart))

	dispatch(t, hub, c2, `{"type":"matchmaking:join"}`)

	start1, ok := c1.last(protocol.TypeRoomStart).(protocol.RoomStart)
	require.True(t, ok)
	start2, ok := c2.last(protocol.TypeRoomStart).(protocol.RoomStart)
	require.True(t, ok)

	assert.Equal(t, start1.RoomID, start2.RoomID)
	assert.NotEmpty(t, start1.RoomID)
	assert.Equal(t, []int64{1, 2}, start1.Players)
	assert.Equal(t, []int64{1, 2}, start2.Players)
	assert.Equal(t, string(ModeMatchmaking), start1.Mode)

	room, ok := rooms.Get(start1.RoomID)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, room.Players())
	assert.Zero(t, hub.Stats().Queued)
}

func TestMatchmakingSkipsDisconnectedPlayers(t *testing.T) {
	hub, _ := newTestHub(t)
	c1, c2, c3 := newFakeConn(1), newFakeConn(2), newFakeConn(3)
	for _, c := range []*fakeConn{c1, c2, c3} {
		hub.Connect(c)
	}

	dispatch(t, hub, c1, `{"type":"matchmaking:join"}`)
	hub.Disconnect(c1)
	dispatch(t, hub, c2, `{"type":"matchmaking:join"}`)
	assert.Zero(t, c2.count(protocol.TypeRoomStart))

	dispatch(t, hub, c3, `{"type":"matchmaking:join"}`)

	start, ok := c3.last(protocol.TypeRoomStart).(protocol.RoomStart)
	require.True(t, ok)
	assert.Equal(t, []int64{2, 3}, start.Players)
	assert.Zero(t, c1.count(protocol.TypeRoomStart))
}

func TestMatchmakingLeave(t *testing.T) {
	hub, _ := newTestHub(t)
	c1, c2 := newFakeConn(1), newFakeConn(2)
	hub.Connect(c1)
	hub.Connect(c2)

	dispatch(t, hub, c1, `{"type":"matchmaking:join"}`)
	dispatch(t, hub, c1, `{"type":"matchmaking:leave"}`)
	dispatch(t, hub, c2, `{"type":"matchmaking:join"}`)

	assert.Zero(t, c2.count(protocol.TypeRoomStart))
	assert.Equal(t, 1, hub.Stats().Queued)
}

func TestPlayerInLiveRoomCannotQueueAgain(t *testing.T) {
	hub, _ := newTestHub(t)
	c1, c2 := newFakeConn(1), newFakeConn(2)
	hub.Connect(c1)
	hub.Connect(c2)
	dispatch(t, hub, c1, `{"type":"matchmaking:join"}`)
	dispatch(t, hub, c2, `{"type":"matchmaking:join"}`)

	dispatch(t, hub, c1, `{"type":"matchmaking:join"}`)

	errMsg, ok := c1.last(protocol.TypeError).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrAlreadyInMatch, errMsg.Code)
	assert.Zero(t, hub.Stats().Queued)
}

func TestInviteToOfflineUser(t *testing.T) {
	hub, _ := newTestHub(t)
	c1 := newFakeConn(1)
	hub.Connect(c1)

	dispatch(t, hub, c1, `{"type":"invite","to":99}`)

	inviteErr, ok := c1.last(protocol.TypeInviteError).(protocol.InviteError)
	require.True(t, ok)
	assert.Equal(t, int64(99), inviteErr.To)
	assert.Equal(t, errs.ErrInviteTargetOffline, inviteErr.Code)
	assert.Contains(t, inviteErr.Message, "99")
	assert.Zero(t, hub.Stats().Invites)
}

func TestInviteSelf(t *testing.T) {
	hub, _ := newTestHub(t)
	c1 := newFakeConn(1)
	hub.Connect(c1)

	dispatch(t, hub, c1, `{"type":"invite:send","to":1}`)

	inviteErr, ok := c1.last(protocol.TypeInviteError).(protocol.InviteError)
	require.True(t, ok)
	assert.Equal(t, errs.ErrInviteSelf, inviteErr.Code)
}

func TestInviteAcceptCreatesRoomWithInviterOnLeft(t *testing.T) {
	hub, _ := newTestHub(t)
	alice, bob := namedConn(10, "Alice"), newFakeConn(20)
	hub.Connect(alice)
	hub.Connect(bob)

	dispatch(t, hub, alice, `{"type":"invite","to":20}`)

	received, ok := bob.last(protocol.TypeInviteReceived).(protocol.InviteReceived)
	require.True(t, ok)
	assert.Equal(t, int64(10), received.From)
	assert.Equal(t, "Alice", received.FromName)

	dispatch(t, hub, bob, `{"type":"invite:accepted","from":10}`)

	startA, ok := alice.last(protocol.TypeRoomStart).(protocol.RoomStart)
	require.True(t, ok)
	startB, ok := bob.last(protocol.TypeRoomStart).(protocol.RoomStart)
	require.True(t, ok)
	assert.Equal(t, startA, startB)
	assert.Equal(t, []int64{10, 20}, startA.Players)
	assert.Equal(t, string(ModeInvite), startA.Mode)
	assert.Zero(t, hub.Stats().Invites)
}

func TestInviteDeclineNotifiesInviterOnly(t *testing.T) {
	hub, _ := newTestHub(t)
	alice, bob := newFakeConn(10), newFakeConn(20)
	hub.Connect(alice)
	hub.Connect(bob)

	dispatch(t, hub, alice, `{"type":"invite","to":20}`)
	dispatch(t, hub, bob, `{"type":"invite:declined","from":10}`)

	declined, ok := alice.last(protocol.TypeInviteDeclined).(protocol.InviteDeclinedNotice)
	require.True(t, ok)
	assert.Equal(t, int64(20), declined.UserID)
	assert.Zero(t, bob.count(protocol.TypeInviteDeclined))
	assert.Zero(t, alice.count(protocol.TypeRoomStart))
	assert.Zero(t, bob.count(protocol.TypeRoomStart))
}

func TestAcceptWithoutInvitation(t *testing.T) {
	hub, _ := newTestHub(t)
	alice, bob := newFakeConn(10), newFakeConn(20)
	hub.Connect(alice)
	hub.Connect(bob)

	dispatch(t, hub, bob, `{"type":"invite:accepted","from":10}`)

	errMsg, ok := bob.last(protocol.TypeError).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrInviteNotFound, errMsg.Code)
	assert.Zero(t, alice.count(protocol.TypeRoomStart))
}

func TestInvitationsDroppedWhenInviterDisconnects(t *testing.T) {
	hub, _ := newTestHub(t)
	alice, bob := newFakeConn(10), newFakeConn(20)
	hub.Connect(alice)
	hub.Connect(bob)

	dispatch(t, hub, alice, `{"type":"invite","to":20}`)
	hub.Disconnect(alice)
	dispatch(t, hub, bob, `{"type":"invite:accepted","from":10}`)

	assert.Zero(t, hub.Stats().Invites)
	assert.Zero(t, bob.count(protocol.TypeRoomStart))
	assert.Equal(t, 1, bob.count(protocol.TypeError))
}

func TestSweepInvitesNotifiesInviter(t *testing.T) {
	hub, _ := newTestHub(t)
	mock := clock.NewMock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	hub.invites = NewInviteBook(30*time.Second, mock)
	alice, bob := newFakeConn(10), newFakeConn(20)
	hub.Connect(alice)
	hub.Connect(bob)

	dispatch(t, hub, alice, `{"type":"invite","to":20}`)
	assert.Zero(t, hub.SweepInvites())

	mock.Advance(31 * time.Second)
	assert.Equal(t, 1, hub.SweepInvites())

	expired, ok := alice.last(protocol.TypeInviteExpired).(protocol.InviteExpired)
	require.True(t, ok)
	assert.Equal(t, int64(20), expired.To)

	dispatch(t, hub, bob, `{"type":"invite:accepted","from":10}`)
	assert.Zero(t, bob.count(protocol.TypeRoomStart))
}

func TestLobbyMembershipAndQueueAreExclusive(t *testing.T) {
	hub, _ := newTestHub(t)
	c1, c2 := namedConn(1, "Ann"), newFakeConn(2)
	hub.Connect(c1)
	hub.Connect(c2)

	dispatch(t, hub, c1, `{"type":"lobby:join"}`)
	dispatch(t, hub, c2, `{"type":"lobby:join"}`)

	list, ok := c1.last(protocol.TypeUserList).(protocol.UserList)
	require.True(t, ok)
	assert.Equal(t, []protocol.LobbyUser{{ID: 1, Name: "Ann"}, {ID: 2}}, list.Users)

	dispatch(t, hub, c2, `{"type":"matchmaking:join"}`)
	assert.Equal(t, 1, hub.Stats().Lobby)
	assert.Equal(t, 1, hub.Stats().Queued)

	list, ok = c1.last(protocol.TypeUserList).(protocol.UserList)
	require.True(t, ok)
	assert.Equal(t, []protocol.LobbyUser{{ID: 1, Name: "Ann"}}, list.Users)

	dispatch(t, hub, c2, `{"type":"lobby:join"}`)
	assert.Zero(t, hub.Stats().Queued)
	assert.Equal(t, 2, hub.Stats().Lobby)
}

type countingNameStore struct {
	*presence.MemoryNameStore
	single atomic.Int32
	batch  atomic.Int32
}

func (s *countingNameStore) GetName(ctx context.Context, id int64) (string, bool, error) {
	s.single.Add(1)
	return s.MemoryNameStore.GetName(ctx, id)
}

func (s *countingNameStore) GetNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	s.batch.Add(1)
	return s.MemoryNameStore.GetNames(ctx, ids)
}

func TestLobbyListReadsNamesInOneBatch(t *testing.T) {
	rooms := NewRoomManager(testSettings())
	t.Cleanup(rooms.Shutdown)
	store := &countingNameStore{MemoryNameStore: presence.NewMemoryNameStore()}
	require.NoError(t, store.SetName(context.Background(), 3, "Cleo"))

	hub := NewHub(HubDeps{
		Registry: presence.NewRegistry(),
		Lobby:    presence.NewLobby(),
		Names:    presence.NewNames(store, nil),
		Invites:  NewInviteBook(DefaultInviteTTL, nil),
		Rooms:    rooms,
	})
	conns := []*fakeConn{newFakeConn(1), newFakeConn(2), newFakeConn(3)}
	for _, c := range conns {
		hub.Connect(c)
		dispatch(t, hub, c, `{"type":"lobby:join"}`)
	}
	store.single.Store(0)
	store.batch.Store(0)

	dispatch(t, hub, conns[0], `{"type":"user:list:request"}`)

	assert.Zero(t, store.single.Load())
	assert.Equal(t, int32(1), store.batch.Load())
	list, ok := conns[0].last(protocol.TypeUserList).(protocol.UserList)
	require.True(t, ok)
	assert.Equal(t, []protocol.LobbyUser{{ID: 1}, {ID: 2}, {ID: 3, Name: "Cleo"}}, list.Users)
}

func TestUserListRequestRepliesToSenderOnly(t *testing.T) {
	hub, _ := newTestHub(t)
	c1, c2 := newFakeConn(1), newFakeConn(2)
	hub.Connect(c1)
	hub.Connect(c2)
	dispatch(t, hub, c1, `{"type":"lobby:join"}`)
	before := c1.count(protocol.TypeUserList)

	dispatch(t, hub, c2, `{"type":"user:list:request"}`)

	assert.Equal(t, 1, c2.count(protocol.TypeUserList))
	assert.Equal(t, before, c1.count(protocol.TypeUserList))
}

func TestFriendsStatus(t *testing.T) {
	hub, _ := newTestHub(t)
	c1, c2 := newFakeConn(1), newFakeConn(2)
	hub.Connect(c1)
	hub.Connect(c2)

	dispatch(t, hub, c1, `{"type":"friends:subscribe","friendIds":[2,3]}`)

	status, ok := c1.last(protocol.TypeFriendsStatus).(protocol.FriendsStatus)
	require.True(t, ok)
	assert.Equal(t, map[int64]bool{2: true, 3: false}, status.Statuses)
}

func TestConnectGreetsAndAnnounces(t *testing.T) {
	hub, _ := newTestHub(t)
	c1 := namedConn(1, "Ann")
	hub.Connect(c1)
	c2 := newFakeConn(2)
	hub.Connect(c2)

	welcome, ok := c1.last(protocol.TypeWelcome).(protocol.Welcome)
	require.True(t, ok)
	assert.Equal(t, int64(1), welcome.UserID)
	require.NotNil(t, welcome.Name)
	assert.Equal(t, "Ann", *welcome.Name)

	online, ok := c1.last(protocol.TypeUserOnline).(protocol.UserOnline)
	require.True(t, ok)
	assert.Equal(t, int64(2), online.UserID)

	hub.Disconnect(c2)
	offline, ok := c1.last(protocol.TypeUserOffline).(protocol.UserOffline)
	require.True(t, ok)
	assert.Equal(t, int64(2), offline.UserID)
}

func TestDispatchRejectsBadFrames(t *testing.T) {
	hub, _ := newTestHub(t)
	c1 := newFakeConn(1)
	hub.Connect(c1)

	assert.ErrorIs(t, hub.Dispatch(c1, []byte(`not json`)), protocol.ErrMalformed)
	assert.ErrorIs(t, hub.Dispatch(c1, []byte(`{"type":"chat"}`)), protocol.ErrUnknownType)
	assert.NoError(t, hub.Dispatch(c1, []byte(`{"type":"game:join","roomId":"nope"}`)), "unknown rooms are a silent no-op")
}

package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongrt/internal/app/pong"
	"pongrt/internal/app/protocol"
	"pongrt/internal/app/results"
	"pongrt/internal/pkg/clock"
	"pongrt/internal/pkg/randx"
)

// standaloneRoom builds a room that is driven by calling its handlers directly, without Run.
func standaloneRoom(t *testing.T, mode Mode) (*Room, *fakeConn, *fakeConn, *[]results.Match) {
	t.Helper()

	settings := testSettings()
	engine := pong.NewEngine(settings.Physics, &randx.FixedSource{Values: []int{1}})
	r := newRoom("room-1", mode, [2]int64{1, 2}, settings, engine, clock.Real{})

	recorded := &[]results.Match{}
	r.onRecord = func(m results.Match) { *recorded = append(*recorded, m) }
	t.Cleanup(r.close)

	return r, newFakeConn(1), newFakeConn(2), recorded
}

func assertTickersConsistent(t *testing.T, r *Room) {
	t.Helper()
	assert.Equal(t, r.physics == nil, r.timer == nil, "physics and timer tickers must be stopped together")
}

func TestJoinStartsRoundOnceBothPlayersAttach(t *testing.T) {
	r, c1, c2, _ := standaloneRoom(t, ModeMatchmaking)

	r.handleJoin(c1)
	assert.Equal(t, PhaseIdle, r.Phase())
	assert.Zero(t, c1.count(protocol.TypeGameReady))
	assert.Nil(t, r.physics)
	assertTickersConsistent(t, r)

	r.handleJoin(c2)
	assert.Equal(t, PhaseRunning, r.Phase())
	assert.NotNil(t, r.physics)
	assertTickersConsistent(t, r)

	ready1, ok := c1.last(protocol.TypeGameReady).(protocol.GameReady)
	require.True(t, ok)
	ready2, ok := c2.last(protocol.TypeGameReady).(protocol.GameReady)
	require.True(t, ok)
	assert.Equal(t, 0, ready1.Side)
	assert.Equal(t, 1, ready2.Side)
	assert.Equal(t, []int64{1, 2}, ready1.Players)

	start, ok := c1.last(protocol.TypeGameStart).(protocol.GameStart)
	require.True(t, ok)
	assert.Equal(t, 60, start.Duration)

	timer, ok := c2.last(protocol.TypeGameTimer).(protocol.GameTimer)
	require.True(t, ok)
	assert.Equal(t, 60, timer.Remaining)

	update, ok := c1.last(protocol.TypeGameUpdate).(protocol.GameUpdate)
	require.True(t, ok)
	require.NotNil(t, update.BallX)
	require.NotNil(t, update.BallY)
	assert.True(t, r.state.Active)
	assert.NotZero(t, r.state.BallVX)
}

func TestInviteRoomUsesLongerRound(t *testing.T) {
	r, c1, c2, _ := standaloneRoom(t, ModeInvite)
	r.handleJoin(c1)
	r.handleJoin(c2)

	start, ok := c1.last(protocol.TypeGameStart).(protocol.GameStart)
	require.True(t, ok)
	assert.Equal(t, 90, start.Duration)
}

func TestJoinFromUnallocatedUserIgnored(t *testing.T) {
	r, c1, _, _ := standaloneRoom(t, ModeMatchmaking)
	stranger := newFakeConn(3)

	r.handleJoin(c1)
	r.handleJoin(stranger)

	assert.Equal(t, PhaseIdle, r.Phase())
	assert.Empty(t, stranger.all())
}

func TestFinishRoundIsIdempotent(t *testing.T) {
	r, c1, c2, recorded := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)
	r.state.Scores = [2]int{3, 1}

	r.finishRound()
	r.finishRound()
	r.tick()
	r.timerTick()

	for _, c := range []*fakeConn{c1, c2} {
		require.Equal(t, 1, c.count(protocol.TypeGameTimeUp))
		timeUp := c.last(protocol.TypeGameTimeUp).(protocol.GameTimeUp)
		assert.Equal(t, pong.LeftWins, timeUp.Winner)
		assert.Equal(t, 3, timeUp.S1)
		assert.Equal(t, 1, timeUp.S2)

		msgs := c.all()
		assert.Equal(t, protocol.TypeGameTimeUp, msgs[len(msgs)-1].typ, "nothing may follow the time-up")
	}

	assert.Equal(t, PhaseRoundOver, r.Phase())
	assert.False(t, r.state.Active)
	assert.Nil(t, r.physics)
	assertTickersConsistent(t, r)

	require.Len(t, *recorded, 1)
	match := (*recorded)[0]
	assert.Equal(t, "room-1", match.RoomID)
	assert.Equal(t, 1, match.Round)
	assert.Equal(t, pong.LeftWins, match.Outcome)
	require.NotNil(t, match.WinnerID())
	assert.Equal(t, int64(1), *match.WinnerID())
	assert.Equal(t, c1.identity.Token, match.Token)
}

func TestRematchIsRecordedAsNextRound(t *testing.T) {
	r, c1, c2, recorded := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)
	r.state.Scores = [2]int{3, 1}
	r.finishRound()

	r.handleBegin(c1)
	require.Equal(t, PhaseRunning, r.Phase())
	r.state.Scores = [2]int{0, 2}
	r.finishRound()

	require.Len(t, *recorded, 2)
	first, second := (*recorded)[0], (*recorded)[1]
	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Equal(t, 1, first.Round)
	assert.Equal(t, 2, second.Round)
	assert.Equal(t, pong.LeftWins, first.Outcome)
	assert.Equal(t, pong.RightWins, second.Outcome)
}

func TestInviteRoundIsNotRecorded(t *testing.T) {
	r, c1, c2, recorded := standaloneRoom(t, ModeInvite)
	r.handleJoin(c1)
	r.handleJoin(c2)

	r.finishRound()

	assert.Equal(t, 1, c1.count(protocol.TypeGameTimeUp))
	assert.Empty(t, *recorded)
}

func TestLeaveMidRoundAbortsWithoutResult(t *testing.T) {
	r, c1, c2, recorded := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)

	r.handleLeave(c1)

	state, ok := c2.last(protocol.TypeSessionState).(protocol.SessionState)
	require.True(t, ok)
	assert.Equal(t, protocol.SessionAborted, state.State)
	assert.Equal(t, "room-1", state.RoomID)

	assert.True(t, r.Closed())
	assert.Zero(t, c2.count(protocol.TypeGameTimeUp))
	assert.Empty(t, *recorded)
	assert.Nil(t, r.physics)
	assertTickersConsistent(t, r)

	select {
	case <-r.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestLeaveAfterRoundClosesSession(t *testing.T) {
	r, c1, c2, _ := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)
	r.finishRound()

	r.handleLeave(c2)

	state, ok := c1.last(protocol.TypeSessionState).(protocol.SessionState)
	require.True(t, ok)
	assert.Equal(t, protocol.SessionClosed, state.State)
	assert.True(t, r.Closed())
}

func TestLeaveOfUnattachedConnectionIgnored(t *testing.T) {
	r, c1, c2, _ := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)

	r.handleLeave(newFakeConn(1))

	assert.Equal(t, PhaseRunning, r.Phase())
	assert.Zero(t, c2.count(protocol.TypeSessionState))
}

func TestBeginIgnoredWhileRunningThenRematch(t *testing.T) {
	r, c1, c2, _ := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)

	r.handleBegin(c1)
	assert.Equal(t, 1, c1.count(protocol.TypeGameStart))

	r.state.Scores = [2]int{2, 2}
	r.finishRound()
	timeUp := c1.last(protocol.TypeGameTimeUp).(protocol.GameTimeUp)
	assert.Equal(t, pong.Draw, timeUp.Winner)

	r.handleBegin(newFakeConn(3))
	assert.Equal(t, PhaseRoundOver, r.Phase())

	r.handleBegin(c2)
	assert.Equal(t, PhaseRunning, r.Phase())
	assert.Equal(t, 2, c1.count(protocol.TypeGameStart))
	assert.Equal(t, [2]int{0, 0}, r.state.Scores)
	assert.NotNil(t, r.physics)
	assertTickersConsistent(t, r)
}

func TestRetiredRoomRefusesRematch(t *testing.T) {
	r, c1, c2, _ := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)

	ok, _ := r.retire()
	assert.False(t, ok, "a running room cannot be retired")

	r.finishRound()
	ok, fresh := r.retire()
	require.True(t, ok)
	assert.True(t, fresh)
	_, fresh = r.retire()
	assert.False(t, fresh)

	r.handleBegin(c2)
	assert.Equal(t, PhaseRoundOver, r.Phase())
	assert.Equal(t, 1, c2.count(protocol.TypeGameStart))

	r.handleRelease(1)
	assert.True(t, r.Closed())
	state, ok := c2.last(protocol.TypeSessionState).(protocol.SessionState)
	require.True(t, ok)
	assert.Equal(t, protocol.SessionClosed, state.State)
	assert.Zero(t, c1.count(protocol.TypeSessionState))
}

func TestInputAppliesOnlyWhileRunning(t *testing.T) {
	r, c1, c2, _ := standaloneRoom(t, ModeMatchmaking)
	r.handleJoin(c1)
	r.handleJoin(c2)

	r.handleInput(c1, pong.Up, true)
	assert.True(t, r.state.Paddles[pong.Left].Up)
	assert.False(t, r.state.Paddles[pong.Right].Up)

	r.handleInput(newFakeConn(2), pong.Down, true)
	assert.False(t, r.state.Paddles[pong.Right].Down)

	r.finishRound()
	r.handleInput(c2, pong.Down, true)
	assert.False(t, r.state.Paddles[pong.Right].Down)
}

func TestRoundRunsToSingleTimeUp(t *testing.T) {
	settings := testSettings()
	settings.Modes[ModeMatchmaking] = ModeConfig{RoundDuration: time.Second, Recorded: true}

	recorded := make(chan results.Match, 4)
	rooms := NewRoomManager(settings, WithRecorder(results.RecorderFunc(func(_ context.Context, m results.Match) error {
		recorded <- m
		return nil
	})))
	t.Cleanup(rooms.Shutdown)

	c1, c2 := newFakeConn(1), newFakeConn(2)
	room, err := rooms.Create(ModeMatchmaking, c1, c2)
	require.NoError(t, err)

	room.Join(c1)
	room.Join(c2)
	require.Eventually(t, func() bool {
		return c1.count(protocol.TypeGameStart) == 1 && c2.count(protocol.TypeGameStart) == 1
	}, 2*time.Second, 10*time.Millisecond)

	room.post(func(r *Room) {
		r.state.Scores = [2]int{3, 1}
		r.state.BallVX, r.state.BallVY = 0, 0
	})

	require.Eventually(t, func() bool {
		return c1.count(protocol.TypeGameTimeUp) > 0 && c2.count(protocol.TypeGameTimeUp) > 0
	}, 3*time.Second, 10*time.Millisecond)

	// Give a stray tick the chance to show up.
	time.Sleep(200 * time.Millisecond)

	for _, c := range []*fakeConn{c1, c2} {
		require.Equal(t, 1, c.count(protocol.TypeGameTimeUp))
		timeUp := c.last(protocol.TypeGameTimeUp).(protocol.GameTimeUp)
		assert.Equal(t, pong.LeftWins, timeUp.Winner)
		assert.Equal(t, 3, timeUp.S1)
		assert.Equal(t, 1, timeUp.S2)

		msgs := c.all()
		at := c.indexOf(protocol.TypeGameTimeUp)
		for _, m := range msgs[at+1:] {
			assert.NotEqual(t, protocol.TypeGameUpdate, m.typ)
			assert.NotEqual(t, protocol.TypeGameTimer, m.typ)
		}

		timer := msgs[at-1].msg
		require.IsType(t, protocol.GameTimer{}, timer)
		assert.Zero(t, timer.(protocol.GameTimer).Remaining)
	}

	assert.Equal(t, PhaseRoundOver, room.Phase())

	select {
	case m := <-recorded:
		assert.Equal(t, room.ID, m.RoomID)
		assert.Equal(t, 3, m.Score1)
		assert.Equal(t, 1, m.Score2)
		assert.Equal(t, string(ModeMatchmaking), m.MatchType)
	case <-time.After(2 * time.Second):
		t.Fatal("match was not recorded")
	}
	assert.Empty(t, recorded)

	_, live := rooms.RoomOf(1)
	assert.False(t, live, "a finished room does not hold its players")
}

func TestJoinWindowExpiry(t *testing.T) {
	settings := testSettings()
	settings.JoinWindow = 50 * time.Millisecond
	rooms := NewRoomManager(settings)
	t.Cleanup(rooms.Shutdown)

	c1, c2 := newFakeConn(1), newFakeConn(2)
	room, err := rooms.Create(ModeMatchmaking, c1, c2)
	require.NoError(t, err)
	room.Join(c1)

	require.Eventually(t, room.Closed, 2*time.Second, 5*time.Millisecond)

	state, ok := c1.last(protocol.TypeSessionState).(protocol.SessionState)
	require.True(t, ok)
	assert.Equal(t, protocol.SessionExpired, state.State)
	assert.Empty(t, c2.all())

	require.Eventually(t, func() bool {
		_, ok := rooms.Get(room.ID)
		return !ok && rooms.Count() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRematchWindowClosesFinishedRoom(t *testing.T) {
	settings := testSettings()
	settings.RematchWindow = 50 * time.Millisecond
	settings.Modes[ModeInvite] = ModeConfig{RoundDuration: time.Second}
	rooms := NewRoomManager(settings)
	t.Cleanup(rooms.Shutdown)

	c1, c2 := newFakeConn(1), newFakeConn(2)
	room, err := rooms.Create(ModeInvite, c1, c2)
	require.NoError(t, err)
	room.Join(c1)
	room.Join(c2)

	require.Eventually(t, room.Closed, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, c1.count(protocol.TypeGameTimeUp))

	state, ok := c2.last(protocol.TypeSessionState).(protocol.SessionState)
	require.True(t, ok)
	assert.Equal(t, protocol.SessionClosed, state.State)
}

func TestManagerCreateRejections(t *testing.T) {
	rooms := NewRoomManager(testSettings())
	t.Cleanup(rooms.Shutdown)
	c1, c2, c3 := newFakeConn(1), newFakeConn(2), newFakeConn(3)

	_, err := rooms.Create(Mode("ranked"), c1, c2)
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = rooms.Create(ModeInvite, c1, newFakeConn(1))
	assert.ErrorIs(t, err, ErrSamePlayer)

	_, err = rooms.Create(ModeInvite, c1, c2)
	require.NoError(t, err)

	_, err = rooms.Create(ModeMatchmaking, c3, c2)
	assert.ErrorIs(t, err, ErrAlreadyInMatch)
	assert.Equal(t, 1, rooms.Count())
	assert.Equal(t, map[string]int{"idle": 1}, rooms.Stats())
}

func TestManagerShutdownClosesRooms(t *testing.T) {
	rooms := NewRoomManager(testSettings())
	c1, c2 := newFakeConn(1), newFakeConn(2)
	room, err := rooms.Create(ModeMatchmaking, c1, c2)
	require.NoError(t, err)
	room.Join(c1)
	room.Join(c2)
	require.Eventually(t, func() bool { return room.Phase() == PhaseRunning }, time.Second, 5*time.Millisecond)

	rooms.Shutdown()

	assert.True(t, room.Closed())
	assert.Zero(t, rooms.Count())
	state, ok := c1.last(protocol.TypeSessionState).(protocol.SessionState)
	require.True(t, ok)
	assert.Equal(t, protocol.SessionClosed, state.State)

	_, err = rooms.Create(ModeMatchmaking, newFakeConn(3), newFakeConn(4))
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestNewMatchReleasesPlayerFromFinishedRoom(t *testing.T) {
	recorded := make(chan results.Match, 4)
	rooms := NewRoomManager(testSettings(), WithRecorder(results.RecorderFunc(func(_ context.Context, m results.Match) error {
		recorded <- m
		return nil
	})))
	t.Cleanup(rooms.Shutdown)

	c1, c2, c3 := newFakeConn(1), newFakeConn(2), newFakeConn(3)
	first, err := rooms.Create(ModeMatchmaking, c1, c2)
	require.NoError(t, err)
	first.Join(c1)
	first.Join(c2)
	require.Eventually(t, func() bool { return first.Phase() == PhaseRunning }, time.Second, 5*time.Millisecond)

	first.post(func(r *Room) { r.finishRound() })
	require.Eventually(t, func() bool { return first.Phase() == PhaseRoundOver }, time.Second, 5*time.Millisecond)
	select {
	case <-recorded:
	case <-time.After(2 * time.Second):
		t.Fatal("first round was not recorded")
	}

	second, err := rooms.Create(ModeMatchmaking, c1, c3)
	require.NoError(t, err)
	second.Join(c1)
	second.Join(c3)
	require.Eventually(t, func() bool { return second.Phase() == PhaseRunning }, time.Second, 5*time.Millisecond)

	first.Begin(c2)
	require.Eventually(t, first.Closed, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, c1.count(protocol.TypeGameStart), "one start per room")
	assert.Equal(t, 1, c2.count(protocol.TypeGameStart))
	state, ok := c2.last(protocol.TypeSessionState).(protocol.SessionState)
	require.True(t, ok)
	assert.Equal(t, protocol.SessionClosed, state.State)
	assert.Equal(t, first.ID, state.RoomID)

	room, ok := rooms.RoomOf(1)
	require.True(t, ok)
	assert.Equal(t, second.ID, room.ID)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, recorded)
}

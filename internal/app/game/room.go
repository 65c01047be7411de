package game

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pongrt/internal/app/pong"
	"pongrt/internal/app/presence"
	"pongrt/internal/app/protocol"
	"pongrt/internal/app/results"
	"pongrt/internal/pkg/clock"
	"pongrt/internal/pkg/logx"
)

const commandBuffer = 64

// command runs inside the room goroutine.
type command func(r *Room)

// Room is one two-player match. All state below the commands channel is owned by the Run goroutine.
type Room struct {
	ID   string
	Mode Mode

	// players holds the allocated user ids by side.
	players [2]int64

	phase     atomic.Int32
	commands  chan command
	done      chan struct{}
	closeOnce sync.Once

	// allocMu guards retired and the round-over to rematch transition.
	allocMu sync.Mutex
	retired bool

	conns  [2]presence.Conn
	engine *pong.Engine
	state  *pong.State

	// physics and timer are both nil or both set.
	physics *time.Ticker
	timer   *time.Ticker
	window  *time.Timer

	// round counts the rounds started in this room.
	round     int
	startedAt time.Time
	endsAt    time.Time

	mode     ModeConfig
	settings RoomSettings
	clock    clock.Clock

	onClose  func(r *Room)
	onRecord func(m results.Match)

	logger zerolog.Logger
}

func newRoom(id string, mode Mode, players [2]int64, settings RoomSettings, engine *pong.Engine, clk clock.Clock) *Room {
	r := &Room{
		ID:       id,
		Mode:     mode,
		players:  players,
		commands: make(chan command, commandBuffer),
		done:     make(chan struct{}),
		engine:   engine,
		mode:     settings.Modes[mode],
		settings: settings,
		clock:    clk,
		onClose:  func(*Room) {},
		onRecord: func(results.Match) {},
		logger: logx.Logger().With().
			Str("component", "room").
			Str("room_id", id).
			Str("mode", string(mode)).
			Logger(),
	}
	r.phase.Store(int32(PhaseIdle))
	return r
}

// Players returns the allocated user ids in side order.
func (r *Room) Players() []int64 {
	return []int64{r.players[0], r.players[1]}
}

// Phase returns the current lifecycle phase. Safe from any goroutine.
func (r *Room) Phase() Phase {
	return Phase(r.phase.Load())
}

// Closed reports whether the room has been torn down.
func (r *Room) Closed() bool {
	return r.Phase() == PhaseClosed
}

// Done is closed once the room is torn down.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) setPhase(p Phase) {
	r.phase.Store(int32(p))
}

// Join attaches c to its side. The round starts once both allocated players joined.
func (r *Room) Join(c presence.Conn) {
	r.post(func(r *Room) { r.handleJoin(c) })
}

// Leave detaches c. A player leaving aborts the room.
func (r *Room) Leave(c presence.Conn) {
	r.post(func(r *Room) { r.handleLeave(c) })
}

// Input records a key press or release from c.
func (r *Room) Input(c presence.Conn, dir pong.Direction, pressed bool) {
	r.post(func(r *Room) { r.handleInput(c, dir, pressed) })
}

// Begin is the explicit start signal. It starts a prepared round or a rematch and is ignored while running.
func (r *Room) Begin(c presence.Conn) {
	r.post(func(r *Room) { r.handleBegin(c) })
}

// Release detaches userID after the manager allocated it to another room. The room closes.
func (r *Room) Release(userID int64) {
	r.post(func(r *Room) { r.handleRelease(userID) })
}

// retire gives up a finished room so its players can be allocated elsewhere.
// It fails unless the room is waiting for a rematch. fresh is false when it was already retired.
func (r *Room) retire() (ok, fresh bool) {
	r.allocMu.Lock()
	defer r.allocMu.Unlock()
	if r.Phase() != PhaseRoundOver {
		return false, false
	}
	fresh = !r.retired
	r.retired = true
	return true, fresh
}

func (r *Room) unretire() {
	r.allocMu.Lock()
	r.retired = false
	r.allocMu.Unlock()
}

// beginRematch moves a finished room back to awaiting start unless it was retired.
func (r *Room) beginRematch() bool {
	r.allocMu.Lock()
	defer r.allocMu.Unlock()
	if r.retired || r.Phase() != PhaseRoundOver {
		return false
	}
	r.setPhase(PhaseAwaitingStart)
	return true
}

// Stop tears the room down without declaring a result.
func (r *Room) Stop(reason string) {
	r.post(func(r *Room) {
		r.broadcast(protocol.SessionState{Type: protocol.TypeSessionState, State: protocol.SessionClosed, RoomID: r.ID, Reason: reason})
		r.close()
	})
}

func (r *Room) post(cmd command) bool {
	select {
	case r.commands <- cmd:
		return true
	case <-r.done:
		return false
	}
}

// Run is the room loop. It returns when the room closes or ctx is cancelled.
func (r *Room) Run(ctx context.Context) {
	r.armWindow(r.settings.JoinWindow)
	r.logger.Info().Ints64("players", r.Players()).Msg("Room started")

	for !r.Closed() {
		select {
		case <-ctx.Done():
			r.guard("shutdown", func() {
				r.broadcast(protocol.SessionState{Type: protocol.TypeSessionState, State: protocol.SessionClosed, RoomID: r.ID, Reason: "server shutting down"})
			})
			r.close()

		case cmd := <-r.commands:
			r.guard("command", func() { cmd(r) })

		case <-tickerC(r.physics):
			r.guard("physics tick", r.tick)

		case <-tickerC(r.timer):
			r.guard("timer tick", r.timerTick)

		case <-timerC(r.window):
			r.window = nil
			r.guard("window", r.windowExpired)
		}
	}

	r.logger.Info().Msg("Room loop finished")
}

// guard runs fn and contains any panic to this room.
func (r *Room) guard(where string, fn func()) {
	defer logx.Recover(r.logger, where)
	fn()
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (r *Room) sideOf(userID int64) (pong.Side, bool) {
	for i, id := range r.players {
		if id == userID {
			return pong.Side(i), true
		}
	}
	return 0, false
}

func (r *Room) attachedSide(c presence.Conn) (pong.Side, bool) {
	for i, conn := range r.conns {
		if conn != nil && conn == c {
			return pong.Side(i), true
		}
	}
	return 0, false
}

func (r *Room) handleJoin(c presence.Conn) {
	id := c.Identity().ID
	side, ok := r.sideOf(id)
	if !ok {
		r.logger.Warn().Int64("user_id", id).Msg("Join from a user not allocated to this room ignored")
		return
	}

	current := r.conns[side]
	if current == c {
		return
	}
	if current != nil && r.Phase() != PhaseIdle {
		r.logger.Warn().Int64("user_id", id).Str("phase", r.Phase().String()).Msg("Join from a second connection ignored")
		return
	}

	r.conns[side] = c
	r.logger.Info().Int64("user_id", id).Int("side", int(side)).Msg("Player joined")

	if r.conns[pong.Left] == nil || r.conns[pong.Right] == nil || r.Phase() != PhaseIdle {
		return
	}

	r.stopWindow()
	r.state = r.engine.NewState()
	r.setPhase(PhaseAwaitingStart)

	for i, conn := range r.conns {
		r.sendTo(conn, protocol.GameReady{
			Type:    protocol.TypeGameReady,
			RoomID:  r.ID,
			Side:    i,
			Players: r.Players(),
		})
	}

	r.startRound()
}

func (r *Room) handleLeave(c presence.Conn) {
	side, ok := r.attachedSide(c)
	if !ok {
		return
	}
	r.conns[side] = nil

	phase := r.Phase()
	r.logger.Info().Int64("user_id", c.Identity().ID).Str("phase", phase.String()).Msg("Player left")

	r.stopRound()
	if r.state != nil {
		r.state.Active = false
	}

	state := protocol.SessionAborted
	if phase == PhaseRoundOver {
		state = protocol.SessionClosed
	}
	r.broadcast(protocol.SessionState{Type: protocol.TypeSessionState, State: state, RoomID: r.ID, Reason: "opponent left"})
	r.close()
}

func (r *Room) handleRelease(userID int64) {
	side, ok := r.sideOf(userID)
	if !ok || r.Closed() {
		return
	}
	r.conns[side] = nil
	r.logger.Info().Int64("user_id", userID).Msg("Player moved to another room")

	r.stopRound()
	r.broadcast(protocol.SessionState{Type: protocol.TypeSessionState, State: protocol.SessionClosed, RoomID: r.ID, Reason: "opponent started another match"})
	r.close()
}

func (r *Room) handleInput(c presence.Conn, dir pong.Direction, pressed bool) {
	side, ok := r.attachedSide(c)
	if !ok || r.Phase() != PhaseRunning {
		return
	}
	r.engine.SetInput(r.state, side, dir, pressed)
}

func (r *Room) handleBegin(c presence.Conn) {
	if _, ok := r.attachedSide(c); !ok {
		return
	}

	switch r.Phase() {
	case PhaseAwaitingStart:
		r.startRound()
	case PhaseRoundOver:
		if !r.beginRematch() {
			r.logger.Info().Msg("Rematch refused, a player is in another room")
			return
		}
		r.stopWindow()
		r.engine.Prepare(r.state)
		r.logger.Info().Msg("Rematch requested")
		r.startRound()
	default:
		r.logger.Debug().Str("phase", r.Phase().String()).Msg("game:begin ignored")
	}
}

func (r *Room) startRound() {
	if r.Phase() != PhaseAwaitingStart {
		return
	}

	now := r.clock.Now()
	r.round++
	r.startedAt = now
	r.endsAt = now.Add(r.mode.RoundDuration)

	r.engine.Start(r.state)
	r.physics = time.NewTicker(r.engine.Config().TickInterval())
	r.timer = time.NewTicker(r.settings.TimerInterval)
	r.setPhase(PhaseRunning)

	r.broadcast(protocol.GameStart{
		Type:     protocol.TypeGameStart,
		RoomID:   r.ID,
		Duration: int(r.mode.RoundDuration / time.Second),
	})
	r.broadcast(protocol.GameTimer{Type: protocol.TypeGameTimer, Remaining: r.remaining()})
	r.broadcastSnapshot()

	r.logger.Info().Dur("duration", r.mode.RoundDuration).Msg("Round started")
}

// stopRound stops both tickers. It reports false when they were already stopped.
func (r *Room) stopRound() bool {
	if r.physics == nil && r.timer == nil {
		return false
	}
	if r.physics != nil {
		r.physics.Stop()
		r.physics = nil
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	return true
}

func (r *Room) tick() {
	if r.Phase() != PhaseRunning {
		return
	}
	if scorer, scored := r.engine.Step(r.state); scored {
		r.logger.Debug().Int("scorer", int(scorer)).Ints("scores", r.state.Scores[:]).Msg("Point scored")
	}
	r.broadcastSnapshot()
}

func (r *Room) timerTick() {
	if r.Phase() != PhaseRunning {
		return
	}
	remaining := r.remaining()
	r.broadcast(protocol.GameTimer{Type: protocol.TypeGameTimer, Remaining: remaining})
	if remaining == 0 {
		r.finishRound()
	}
}

func (r *Room) remaining() int {
	left := r.endsAt.Sub(r.clock.Now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// finishRound is the only place a round result is declared. Calling it twice has no further effect.
func (r *Room) finishRound() {
	if !r.stopRound() {
		return
	}

	r.state.Active = false
	s1, s2 := r.state.Scores[pong.Left], r.state.Scores[pong.Right]
	outcome := pong.Resolve(s1, s2)
	r.setPhase(PhaseRoundOver)

	r.broadcast(protocol.GameTimeUp{
		Type:   protocol.TypeGameTimeUp,
		Winner: outcome,
		S1:     s1,
		S2:     s2,
	})
	r.logger.Info().Str("winner", string(outcome)).Int("s1", s1).Int("s2", s2).Msg("Round finished")

	r.armWindow(r.settings.RematchWindow)

	if r.mode.Recorded {
		r.onRecord(r.matchResult(outcome))
	}
}

func (r *Room) matchResult(outcome pong.Outcome) results.Match {
	p1, p2 := r.players[pong.Left], r.players[pong.Right]
	m := results.Match{
		RoomID:    r.ID,
		Round:     r.round,
		Player1ID: &p1,
		Player2ID: &p2,
		Score1:    r.state.Scores[pong.Left],
		Score2:    r.state.Scores[pong.Right],
		Outcome:   outcome,
		MatchType: string(r.Mode),
		Duration:  r.clock.Now().Sub(r.startedAt),
		PlayedAt:  r.startedAt,
	}
	if left := r.conns[pong.Left]; left != nil {
		m.Token = left.Identity().Token
	}
	return m
}

func (r *Room) windowExpired() {
	switch r.Phase() {
	case PhaseIdle:
		r.logger.Info().Msg("Join window expired")
		r.broadcast(protocol.SessionState{Type: protocol.TypeSessionState, State: protocol.SessionExpired, RoomID: r.ID, Reason: "opponent did not join"})
		r.close()
	case PhaseRoundOver:
		r.broadcast(protocol.SessionState{Type: protocol.TypeSessionState, State: protocol.SessionClosed, RoomID: r.ID})
		r.close()
	}
}

func (r *Room) armWindow(d time.Duration) {
	r.stopWindow()
	r.window = time.NewTimer(d)
}

func (r *Room) stopWindow() {
	if r.window != nil {
		r.window.Stop()
		r.window = nil
	}
}

func (r *Room) close() {
	r.closeOnce.Do(func() {
		r.stopRound()
		r.stopWindow()
		r.setPhase(PhaseClosed)
		close(r.done)
		r.onClose(r)
	})
}

func (r *Room) broadcastSnapshot() {
	r.broadcast(protocol.GameUpdate{
		Type:     protocol.TypeGameUpdate,
		Snapshot: r.engine.Snapshot(r.state),
	})
}

// broadcast sends msg to both attached players.
func (r *Room) broadcast(msg any) {
	for _, c := range r.conns {
		r.sendTo(c, msg)
	}
}

func (r *Room) sendTo(c presence.Conn, msg any) {
	if c == nil {
		return
	}
	if err := c.Send(msg); err != nil {
		r.logger.Debug().Err(err).Int64("user_id", c.Identity().ID).Msg("Send to player failed")
	}
}

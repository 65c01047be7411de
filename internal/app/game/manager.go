package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pongrt/internal/app/pong"
	"pongrt/internal/app/presence"
	"pongrt/internal/app/results"
	"pongrt/internal/pkg/clock"
	"pongrt/internal/pkg/logx"
	"pongrt/internal/pkg/randx"
)

const recordTimeout = 15 * time.Second

var (
	// ErrAlreadyInMatch means one of the users is allocated to a live room.
	ErrAlreadyInMatch = errors.New("player already in a match")
	// ErrSamePlayer means both sides would be the same user.
	ErrSamePlayer = errors.New("a player cannot play against themselves")
	// ErrUnknownMode means the mode has no configuration.
	ErrUnknownMode = errors.New("unknown game mode")
	// ErrShuttingDown means the manager no longer accepts rooms.
	ErrShuttingDown = errors.New("room manager is shutting down")
)

// ManagerOption customises a RoomManager.
type ManagerOption func(*RoomManager)

// WithRecorder sets where results of recorded modes go.
func WithRecorder(rec results.Recorder) ManagerOption {
	return func(m *RoomManager) { m.recorder = rec }
}

// WithClock replaces the wall clock used for round timing.
func WithClock(clk clock.Clock) ManagerOption {
	return func(m *RoomManager) { m.clock = clk }
}

// WithRandom replaces the serve direction source.
func WithRandom(src randx.Source) ManagerOption {
	return func(m *RoomManager) { m.rng = src }
}

// WithIDGenerator replaces the room id generator.
func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *RoomManager) { m.newID = gen }
}

// RoomManager creates, tracks and tears down rooms.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	byUser map[int64]*Room

	settings RoomSettings
	recorder results.Recorder
	clock    clock.Clock
	rng      randx.Source
	newID    func() string

	// cleanup receives rooms that finished their loop.
	cleanup chan *Room

	roomsCtx    context.Context
	cancelRooms context.CancelFunc
	stopLoop    chan struct{}
	shutdown    sync.Once

	roomWG   sync.WaitGroup
	loopWG   sync.WaitGroup
	recordWG sync.WaitGroup

	logger zerolog.Logger
}

// NewRoomManager returns a manager and starts its cleanup loop.
func NewRoomManager(settings RoomSettings, opts ...ManagerOption) *RoomManager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &RoomManager{
		rooms:       make(map[string]*Room),
		byUser:      make(map[int64]*Room),
		settings:    settings,
		clock:       clock.Real{},
		rng:         randx.CryptoSource{},
		newID:       randx.RoomID,
		cleanup:     make(chan *Room, 16),
		roomsCtx:    ctx,
		cancelRooms: cancel,
		stopLoop:    make(chan struct{}),
		logger:      logx.Component("room_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.loopWG.Add(1)
	go m.runCleanupLoop()

	return m
}

func (m *RoomManager) runCleanupLoop() {
	defer m.loopWG.Done()

	for {
		select {
		case room := <-m.cleanup:
			m.release(room)
		case <-m.stopLoop:
			// Drain what rooms queued before shutdown.
			for {
				select {
				case room := <-m.cleanup:
					m.release(room)
				default:
					return
				}
			}
		}
	}
}

func (m *RoomManager) release(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[room.ID] == room {
		delete(m.rooms, room.ID)
	}
	for _, id := range room.players {
		if m.byUser[id] == room {
			delete(m.byUser, id)
		}
	}
	m.logger.Info().Str("room_id", room.ID).Msg("Room removed")
}

func (m *RoomManager) roomClosed(room *Room) {
	select {
	case m.cleanup <- room:
	default:
		m.release(room)
	}
}

// Create allocates a room for a (side 0) and b (side 1) and starts its loop.
func (m *RoomManager) Create(mode Mode, a, b presence.Conn) (*Room, error) {
	if _, ok := m.settings.Modes[mode]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	players := [2]int64{a.Identity().ID, b.Identity().ID}
	if players[0] == players[1] {
		return nil, ErrSamePlayer
	}

	m.mu.Lock()
	if m.roomsCtx.Err() != nil {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	stale, err := m.retireFinished(players)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	engine := pong.NewEngine(m.settings.Physics, m.rng)
	room := newRoom(m.newID(), mode, players, m.settings, engine, m.clock)
	room.onClose = m.roomClosed
	room.onRecord = m.record

	m.rooms[room.ID] = room
	for _, id := range players {
		m.byUser[id] = room
	}
	m.roomWG.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.roomWG.Done()
		room.Run(m.roomsCtx)
	}()

	for _, s := range stale {
		s.room.Release(s.userID)
	}

	return room, nil
}

type staleSeat struct {
	room   *Room
	userID int64
}

// retireFinished checks that no player is in a live room and retires the finished rooms they
// still sit in, so those rooms can no longer start a rematch. Callers hold m.mu.
func (m *RoomManager) retireFinished(players [2]int64) ([]staleSeat, error) {
	var (
		stale   []staleSeat
		retired []*Room
	)
	for _, id := range players {
		existing, ok := m.byUser[id]
		if !ok || existing.Closed() {
			continue
		}
		ok, fresh := existing.retire()
		if !ok {
			for _, room := range retired {
				room.unretire()
			}
			return nil, fmt.Errorf("%w: user %d in room %s", ErrAlreadyInMatch, id, existing.ID)
		}
		if fresh {
			retired = append(retired, existing)
		}
		stale = append(stale, staleSeat{room: existing, userID: id})
	}
	return stale, nil
}

// isLive reports whether room still holds its players. Finished rooms waiting for a rematch do not.
func isLive(room *Room) bool {
	switch room.Phase() {
	case PhaseIdle, PhaseAwaitingStart, PhaseRunning:
		return true
	default:
		return false
	}
}

// Get returns the room with id.
func (m *RoomManager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok || room.Closed() {
		return nil, false
	}
	return room, true
}

// RoomOf returns the live room userID is allocated to.
func (m *RoomManager) RoomOf(userID int64) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.byUser[userID]
	if !ok || !isLive(room) {
		return nil, false
	}
	return room, true
}

// Leave detaches c from whichever room its user is allocated to.
func (m *RoomManager) Leave(c presence.Conn) {
	m.mu.RLock()
	room, ok := m.byUser[c.Identity().ID]
	m.mu.RUnlock()
	if ok {
		room.Leave(c)
	}
}

// Count returns the number of rooms not yet released.
func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Stats returns room counts by phase.
func (m *RoomManager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int)
	for _, room := range m.rooms {
		out[room.Phase().String()]++
	}
	return out
}

func (m *RoomManager) record(match results.Match) {
	if m.recorder == nil {
		return
	}

	m.recordWG.Add(1)
	go func() {
		defer m.recordWG.Done()
		defer logx.Recover(m.logger, "record match")

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := m.recorder.Record(ctx, match); err != nil {
			m.logger.Warn().Err(err).Str("room_id", match.RoomID).Msg("Recording match failed")
			return
		}
		m.logger.Info().Str("room_id", match.RoomID).Msg("Match recorded")
	}()
}

// Shutdown stops every room, then the cleanup loop, then waits for pending recordings.
func (m *RoomManager) Shutdown() {
	m.shutdown.Do(func() {
		m.logger.Info().Msg("Shutting down room manager")

		m.mu.Lock()
		m.cancelRooms()
		m.mu.Unlock()

		m.roomWG.Wait()
		close(m.stopLoop)
		m.loopWG.Wait()
		m.recordWG.Wait()

		m.logger.Info().Msg("Room manager shutdown complete")
	})
}

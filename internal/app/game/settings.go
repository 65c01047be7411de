package game

import (
	"fmt"
	"time"

	"pongrt/internal/app/pong"
)

// Mode is the way a room was created. It selects the round duration and whether results are recorded.
type Mode string

const (
	// ModeInvite rooms come from an accepted invitation. They are friendly and not recorded.
	ModeInvite Mode = "invite"
	// ModeMatchmaking rooms come from the queue and are recorded.
	ModeMatchmaking Mode = "matchmaking"
)

// ModeConfig holds per-mode round settings.
type ModeConfig struct {
	RoundDuration time.Duration `yaml:"roundDuration"`
	Recorded      bool          `yaml:"recorded"`
}

// RoomSettings configures every room created by a RoomManager.
type RoomSettings struct {
	Physics pong.Config         `yaml:"physics"`
	Modes   map[Mode]ModeConfig `yaml:"modes"`

	// JoinWindow is how long a new room waits for both players to send game:join.
	JoinWindow time.Duration `yaml:"joinWindow"`
	// RematchWindow is how long a finished room waits for game:begin before closing.
	RematchWindow time.Duration `yaml:"rematchWindow"`
	// TimerInterval is the period of game:timer broadcasts.
	TimerInterval time.Duration `yaml:"timerInterval"`
}

// DefaultRoomSettings returns production defaults.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		Physics: pong.DefaultConfig(),
		Modes: map[Mode]ModeConfig{
			ModeInvite:      {RoundDuration: 90 * time.Second, Recorded: false},
			ModeMatchmaking: {RoundDuration: 60 * time.Second, Recorded: true},
		},
		JoinWindow:    30 * time.Second,
		RematchWindow: 30 * time.Second,
		TimerInterval: time.Second,
	}
}

// Validate checks the settings.
func (s RoomSettings) Validate() error {
	if err := s.Physics.Validate(); err != nil {
		return err
	}
	if len(s.Modes) == 0 {
		return fmt.Errorf("no game modes configured")
	}
	for mode, mc := range s.Modes {
		if mc.RoundDuration <= 0 {
			return fmt.Errorf("mode %q: round duration must be positive", mode)
		}
	}
	if s.JoinWindow <= 0 || s.RematchWindow <= 0 || s.TimerInterval <= 0 {
		return fmt.Errorf("join window, rematch window and timer interval must be positive")
	}
	return nil
}

// Phase is the lifecycle state of a room.
type Phase int32

const (
	// PhaseIdle means players are allocated but the round state does not exist yet.
	PhaseIdle Phase = iota
	// PhaseAwaitingStart means the state is prepared and the loop is not running.
	PhaseAwaitingStart
	// PhaseRunning means physics and timer tickers are active.
	PhaseRunning
	// PhaseRoundOver means the tickers stopped and scores are frozen.
	PhaseRoundOver
	// PhaseClosed means the room is torn down.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingStart:
		return "awaiting_start"
	case PhaseRunning:
		return "running"
	case PhaseRoundOver:
		return "round_over"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

/*
Package pong is the authoritative physics and scoring engine for one two-player round.

It is pure computation: a Room owns a *State and calls Engine.Step once per tick from its own
goroutine. Coordinates are normalised to a 100x100 field with Y growing downwards, side 0 is the
left paddle and side 1 the right one.
*/
package pong

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the physical constants of the field. Values are in field units per tick.
type Config struct {
	FieldWidth  float64 `yaml:"fieldWidth"`
	FieldHeight float64 `yaml:"fieldHeight"`

	PaddleWidth  float64 `yaml:"paddleWidth"`
	PaddleHeight float64 `yaml:"paddleHeight"`
	BallWidth    float64 `yaml:"ballWidth"`
	BallHeight   float64 `yaml:"ballHeight"`

	// PaddleAccel is added to (down) or subtracted from (up) the paddle velocity each tick.
	PaddleAccel float64 `yaml:"paddleAccel"`
	// PaddleMaxSpeed bounds the paddle velocity in both directions.
	PaddleMaxSpeed float64 `yaml:"paddleMaxSpeed"`
	// PaddleFriction multiplies the velocity of an idle paddle, must be in [0, 1).
	PaddleFriction float64 `yaml:"paddleFriction"`

	// BallSpeed is the serve speed on both axes.
	BallSpeed float64 `yaml:"ballSpeed"`
	// HitMultiplier is applied to both ball velocity components on every paddle hit.
	HitMultiplier float64 `yaml:"hitMultiplier"`
	// MaxBallSpeed caps each ball velocity component after a hit.
	MaxBallSpeed float64 `yaml:"maxBallSpeed"`

	// TickRate is the number of physics ticks per second.
	TickRate int `yaml:"tickRate"`
}

// DefaultConfig returns the standard field used by every game mode.
func DefaultConfig() Config {
	return Config{
		FieldWidth:     100,
		FieldHeight:    100,
		PaddleWidth:    3.3,
		PaddleHeight:   25,
		BallWidth:      3.3,
		BallHeight:     5,
		PaddleAccel:    0.25,
		PaddleMaxSpeed: 2,
		PaddleFriction: 0.8,
		BallSpeed:      0.6,
		HitMultiplier:  1.05,
		MaxBallSpeed:   3,
		TickRate:       60,
	}
}

// ErrInvalidConfig is returned by Validate for physically meaningless settings.
var ErrInvalidConfig = errors.New("invalid physics config")

// Validate checks that the configuration describes a playable field.
func (c Config) Validate() error {
	switch {
	case c.FieldWidth <= 0 || c.FieldHeight <= 0:
		return fmt.Errorf("%w: field must have a positive size", ErrInvalidConfig)
	case c.PaddleHeight <= 0 || c.PaddleHeight > c.FieldHeight:
		return fmt.Errorf("%w: paddle height must be in (0, fieldHeight]", ErrInvalidConfig)
	case c.PaddleWidth <= 0 || c.BallWidth <= 0 || c.BallHeight <= 0:
		return fmt.Errorf("%w: paddle and ball sizes must be positive", ErrInvalidConfig)
	case c.PaddleFriction < 0 || c.PaddleFriction >= 1:
		return fmt.Errorf("%w: paddle friction must be in [0, 1)", ErrInvalidConfig)
	case c.PaddleAccel <= 0 || c.PaddleMaxSpeed <= 0:
		return fmt.Errorf("%w: paddle acceleration and max speed must be positive", ErrInvalidConfig)
	case c.BallSpeed <= 0 || c.MaxBallSpeed < c.BallSpeed:
		return fmt.Errorf("%w: ball speed must be positive and not above maxBallSpeed", ErrInvalidConfig)
	case c.MaxBallSpeed > c.PaddleWidth+c.BallWidth/2:
		// Faster balls could skip the paddle plane within a single tick.
		return fmt.Errorf("%w: maxBallSpeed must not exceed paddleWidth + ballWidth/2", ErrInvalidConfig)
	case c.HitMultiplier < 1:
		return fmt.Errorf("%w: hit multiplier must be >= 1", ErrInvalidConfig)
	case c.TickRate <= 0:
		return fmt.Errorf("%w: tick rate must be positive", ErrInvalidConfig)
	}
	return nil
}

// TickInterval is the period between two physics ticks.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

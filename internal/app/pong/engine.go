package pong

import (
	"math"

	"pongrt/internal/pkg/randx"
)

// Engine applies Config to States.
type Engine struct {
	cfg Config
	rng randx.Source
}

// NewEngine returns an engine for cfg. rng decides serve directions; nil uses crypto randomness.
func NewEngine(cfg Config, rng randx.Source) *Engine {
	if rng == nil {
		rng = randx.CryptoSource{}
	}
	return &Engine{cfg: cfg, rng: rng}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// NewState returns an inactive state with centered paddles, a centered motionless ball and zero scores.
func (e *Engine) NewState() *State {
	s := &State{}
	e.Prepare(s)
	return s
}

// Prepare resets s for a new round: scores cleared, paddles centered, ball centered and still, inputs released.
func (e *Engine) Prepare(s *State) {
	center := (e.cfg.FieldHeight - e.cfg.PaddleHeight) / 2
	s.Paddles = [2]Paddle{{Y: center}, {Y: center}}
	s.Scores = [2]int{}
	s.Active = false
	e.ResetBall(s)
}

// ResetBall puts the ball at the exact field center and stops it.
func (e *Engine) ResetBall(s *State) {
	s.BallX = e.cfg.FieldWidth/2 - e.cfg.BallWidth/2
	s.BallY = e.cfg.FieldHeight/2 - e.cfg.BallHeight/2
	s.BallVX = 0
	s.BallVY = 0
}

// Serve recenters the ball and launches it at base speed with random signs.
func (e *Engine) Serve(s *State) {
	e.ResetBall(s)
	s.BallVX = randx.Sign(e.rng) * e.cfg.BallSpeed
	s.BallVY = randx.Sign(e.rng) * e.cfg.BallSpeed
}

// Start activates s and serves. Scores are kept.
func (e *Engine) Start(s *State) {
	s.Active = true
	e.Serve(s)
}

// SetInput records a key press or release for side. Ignored while the round is not active.
func (e *Engine) SetInput(s *State, side Side, dir Direction, pressed bool) bool {
	if !s.Active || !side.Valid() {
		return false
	}
	p := &s.Paddles[side]
	switch dir {
	case Up:
		p.Up = pressed
	case Down:
		p.Down = pressed
	default:
		return false
	}
	return true
}

// Step advances s by one tick. It returns the scoring side and true when a point was scored.
func (e *Engine) Step(s *State) (Side, bool) {
	if !s.Active {
		return 0, false
	}

	for i := range s.Paddles {
		e.movePaddle(&s.Paddles[i])
	}

	s.BallX += s.BallVX
	s.BallY += s.BallVY

	e.bounceWalls(s)
	e.collidePaddles(s)

	return e.score(s)
}

func (e *Engine) movePaddle(p *Paddle) {
	switch {
	case p.Up && !p.Down:
		p.VY -= e.cfg.PaddleAccel
	case p.Down && !p.Up:
		p.VY += e.cfg.PaddleAccel
	default:
		p.VY *= e.cfg.PaddleFriction
	}
	p.VY = clamp(p.VY, -e.cfg.PaddleMaxSpeed, e.cfg.PaddleMaxSpeed)
	p.Y = clamp(p.Y+p.VY, 0, e.cfg.FieldHeight-e.cfg.PaddleHeight)
}

func (e *Engine) bounceWalls(s *State) {
	bottom := e.cfg.FieldHeight - e.cfg.BallHeight
	switch {
	case s.BallY <= 0:
		s.BallY = 0
		s.BallVY = math.Abs(s.BallVY)
	case s.BallY >= bottom:
		s.BallY = bottom
		s.BallVY = -math.Abs(s.BallVY)
	}
}

func (e *Engine) collidePaddles(s *State) {
	center := s.BallX + e.cfg.BallWidth/2

	right := &s.Paddles[Right]
	rightPlane := e.cfg.FieldWidth - e.cfg.PaddleWidth
	if s.BallVX > 0 && s.BallX+e.cfg.BallWidth >= rightPlane && center <= e.cfg.FieldWidth && e.overlaps(s, right) {
		s.BallX = e.cfg.FieldWidth - e.cfg.PaddleWidth - e.cfg.BallWidth
		s.BallVX = -s.BallVX
		e.speedUp(s)
		return
	}

	left := &s.Paddles[Left]
	if s.BallVX < 0 && s.BallX <= e.cfg.PaddleWidth && center >= 0 && e.overlaps(s, left) {
		s.BallX = e.cfg.PaddleWidth
		s.BallVX = -s.BallVX
		e.speedUp(s)
	}
}

func (e *Engine) overlaps(s *State, p *Paddle) bool {
	return s.BallY+e.cfg.BallHeight >= p.Y && s.BallY <= p.Y+e.cfg.PaddleHeight
}

func (e *Engine) speedUp(s *State) {
	limit := e.cfg.MaxBallSpeed
	s.BallVX = clamp(s.BallVX*e.cfg.HitMultiplier, -limit, limit)
	s.BallVY = clamp(s.BallVY*e.cfg.HitMultiplier, -limit, limit)
}

// score uses the ball center, never its edges, so both sides get the same margin.
func (e *Engine) score(s *State) (Side, bool) {
	center := s.BallX + e.cfg.BallWidth/2
	var scorer Side
	switch {
	case center < 0:
		scorer = Right
	case center > e.cfg.FieldWidth:
		scorer = Left
	default:
		return 0, false
	}
	s.Scores[scorer]++
	e.Serve(s)
	return scorer, true
}

// Snapshot returns the broadcast form of s. Ball coordinates are present only while s is active.
func (e *Engine) Snapshot(s *State) Snapshot {
	snap := Snapshot{
		P1Y: s.Paddles[Left].Y,
		P2Y: s.Paddles[Right].Y,
		S1:  s.Scores[Left],
		S2:  s.Scores[Right],
	}
	if s.Active {
		x, y := s.BallX, s.BallY
		snap.BallX = &x
		snap.BallY = &y
	}
	return snap
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

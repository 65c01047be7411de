package pong

// Side identifies a paddle. The order is fixed when a room is created.
type Side int

const (
	// Left is side 0, the inviter or first dequeued player.
	Left Side = 0
	// Right is side 1.
	Right Side = 1
)

// Valid reports whether s is Left or Right.
func (s Side) Valid() bool {
	return s == Left || s == Right
}

// Direction is a paddle input key.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Paddle is one side's paddle and its held keys.
type Paddle struct {
	Y  float64
	VY float64

	Up   bool
	Down bool
}

// State is the mutable state of one round. It must only be touched by the goroutine that owns the room.
type State struct {
	Paddles [2]Paddle

	BallX  float64
	BallY  float64
	BallVX float64
	BallVY float64

	Scores [2]int

	// Active gates Step and SetInput. It is false before the round starts and after it ends.
	Active bool
}

// Snapshot is the normalised broadcast form of a State.
type Snapshot struct {
	P1Y   float64  `json:"p1Y"`
	P2Y   float64  `json:"p2Y"`
	S1    int      `json:"s1"`
	S2    int      `json:"s2"`
	BallX *float64 `json:"ballX,omitempty"`
	BallY *float64 `json:"ballY,omitempty"`
}

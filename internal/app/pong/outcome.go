package pong

// Outcome is the result of a finished round as broadcast in game:timeup.
type Outcome string

const (
	LeftWins  Outcome = "p1"
	RightWins Outcome = "p2"
	Draw      Outcome = "draw"
)

// Resolve decides the outcome from final scores. A strictly greater score wins, equal scores draw.
func Resolve(s1, s2 int) Outcome {
	switch {
	case s1 > s2:
		return LeftWins
	case s2 > s1:
		return RightWins
	default:
		return Draw
	}
}

// Winner returns the winning side; ok is false for a draw.
func (o Outcome) Winner() (side Side, ok bool) {
	switch o {
	case LeftWins:
		return Left, true
	case RightWins:
		return Right, true
	default:
		return 0, false
	}
}

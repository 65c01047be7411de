/*
Package results records finished matches outside the realtime core.

A Recorder receives one Match per concluded round of a recorded mode. Sinks are independent:
the match service over HTTP, the Postgres ledger, the S3 archive and a NATS event. Failures are
returned to the caller, which logs them; nothing here retries.
*/
package results

import (
	"context"
	"errors"
	"time"

	"pongrt/internal/app/pong"
)

// Match is the result of one concluded round.
type Match struct {
	RoomID string
	// Round numbers the concluded rounds of one room from 1; rematches share the RoomID.
	Round int

	// Player ids by side; nil for participants without an account.
	Player1ID *int64
	Player2ID *int64

	Score1 int
	Score2 int

	Outcome   pong.Outcome
	MatchType string
	Duration  time.Duration
	PlayedAt  time.Time

	// Token is the left player's credential, used to authenticate against the match service.
	Token string
}

// WinnerID returns the winning player's id, nil on a draw.
func (m Match) WinnerID() *int64 {
	side, ok := m.Outcome.Winner()
	if !ok {
		return nil
	}
	if side == pong.Left {
		return m.Player1ID
	}
	return m.Player2ID
}

// Recorder persists a Match somewhere.
type Recorder interface {
	Record(ctx context.Context, m Match) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, m Match) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, m Match) error {
	return f(ctx, m)
}

// Fanout records to every sink and joins their errors. One failing sink does not stop the others.
type Fanout []Recorder

// Record implements Recorder.
func (f Fanout) Record(ctx context.Context, m Match) error {
	var errs []error
	for _, r := range f {
		if err := r.Record(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Document is the JSON form shared by the archive and the event stream.
type Document struct {
	RoomID      string    `json:"roomId"`
	Round       int       `json:"round"`
	Player1ID   *int64    `json:"player1Id"`
	Player2ID   *int64    `json:"player2Id"`
	Score1      int       `json:"score1"`
	Score2      int       `json:"score2"`
	WinnerID    *int64    `json:"winnerId"`
	Outcome     string    `json:"outcome"`
	MatchType   string    `json:"matchType"`
	DurationSec int       `json:"durationSec"`
	PlayedAt    time.Time `json:"playedAt"`
}

// NewDocument converts m.
func NewDocument(m Match) Document {
	return Document{
		RoomID:      m.RoomID,
		Round:       m.Round,
		Player1ID:   m.Player1ID,
		Player2ID:   m.Player2ID,
		Score1:      m.Score1,
		Score2:      m.Score2,
		WinnerID:    m.WinnerID(),
		Outcome:     string(m.Outcome),
		MatchType:   m.MatchType,
		DurationSec: int(m.Duration.Round(time.Second) / time.Second),
		PlayedAt:    m.PlayedAt.UTC(),
	}
}

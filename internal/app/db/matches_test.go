package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongrt/internal/app/db"
	"pongrt/internal/app/pong"
	"pongrt/internal/app/results"
)

type execRecorder struct {
	sql  string
	args []any
	err  error
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql, e.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), e.err
}

func (e *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func match() results.Match {
	p1, p2 := int64(1), int64(2)
	return results.Match{
		RoomID:    "6f1c2b9e-0000-4000-8000-000000000001",
		Round:     2,
		Player1ID: &p1,
		Player2ID: &p2,
		Score1:    2,
		Score2:    5,
		Outcome:   pong.RightWins,
		MatchType: "matchmaking",
		Duration:  59600 * time.Millisecond,
		PlayedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestInsertMatchArguments(t *testing.T) {
	q := &execRecorder{}

	require.NoError(t, db.NewMatchStore(q).InsertMatch(context.Background(), match()))

	assert.Contains(t, q.sql, "INSERT INTO match_results")
	require.Len(t, q.args, 11)
	assert.Equal(t, "6f1c2b9e-0000-4000-8000-000000000001", q.args[0])
	assert.Equal(t, 2, q.args[1])
	assert.Equal(t, int64(2), *(q.args[6].(*int64)), "winner is the right player")
	assert.Equal(t, "p2", q.args[7])
	assert.Equal(t, 60, q.args[9])
}

func TestInsertMatchTreatsDuplicateAsDone(t *testing.T) {
	q := &execRecorder{err: &pgconn.PgError{Code: "23505"}}

	assert.NoError(t, db.NewMatchStore(q).InsertMatch(context.Background(), match()))
}

func TestInsertMatchWrapsOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	q := &execRecorder{err: boom}

	err := db.NewMatchStore(q).InsertMatch(context.Background(), match())

	assert.ErrorIs(t, err, boom)
	assert.False(t, db.IsUniqueViolation(err))
}

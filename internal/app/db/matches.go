package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pongrt/internal/app/results"
	"pongrt/internal/pkg/logx"
)

// Querier is the subset of *pgxpool.Pool used by MatchStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// MatchStore is the match ledger. It implements results.LedgerStore.
type MatchStore struct {
	db Querier
}

// NewMatchStore returns a ledger over db.
func NewMatchStore(db Querier) *MatchStore {
	return &MatchStore{db: db}
}

const insertMatchSQL = `
INSERT INTO match_results
    (room_id, round, player1_id, player2_id, score1, score2, winner_id, outcome, match_type, duration_sec, played_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// InsertMatch stores m. A second insert for the same room and round is ignored.
func (s *MatchStore) InsertMatch(ctx context.Context, m results.Match) error {
	doc := results.NewDocument(m)
	_, err := s.db.Exec(ctx, insertMatchSQL,
		doc.RoomID, doc.Round, doc.Player1ID, doc.Player2ID, doc.Score1, doc.Score2,
		doc.WinnerID, doc.Outcome, doc.MatchType, doc.DurationSec, doc.PlayedAt,
	)
	if IsUniqueViolation(err) {
		logx.Warn("Match already recorded", "room_id", m.RoomID, "round", m.Round)
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert match %s round %d: %w", m.RoomID, m.Round, err)
	}
	return nil
}

const recentMatchesSQL = `
SELECT room_id::text, round, player1_id, player2_id, score1, score2, winner_id, outcome, match_type, duration_sec, played_at
FROM match_results
WHERE player1_id = $1 OR player2_id = $1
ORDER BY played_at DESC
LIMIT $2`

// RecentMatches returns up to limit matches of userID, newest first.
func (s *MatchStore) RecentMatches(ctx context.Context, userID int64, limit int) ([]results.Document, error) {
	rows, err := s.db.Query(ctx, recentMatchesSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches of %d: %w", userID, err)
	}
	defer rows.Close()

	out := make([]results.Document, 0, limit)
	for rows.Next() {
		var (
			doc      results.Document
			playedAt time.Time
		)
		if err := rows.Scan(
			&doc.RoomID, &doc.Round, &doc.Player1ID, &doc.Player2ID, &doc.Score1, &doc.Score2,
			&doc.WinnerID, &doc.Outcome, &doc.MatchType, &doc.DurationSec, &playedAt,
		); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		doc.PlayedAt = playedAt.UTC()
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

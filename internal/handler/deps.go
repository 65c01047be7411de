package handler

import (
	"context"

	"pongrt/internal/app/game"
	"pongrt/internal/app/results"
	"pongrt/internal/configs"
	"pongrt/internal/pkg/auth/jwt"
	"pongrt/internal/pkg/limiter"
)

// MatchHistory serves the recent-matches endpoint. *db.MatchStore implements it.
type MatchHistory interface {
	RecentMatches(ctx context.Context, userID int64, limit int) ([]results.Document, error)
}

type AppDeps struct {
	Config   *configs.AppConfig
	Hub      *game.Hub
	Verifier *jwt.Verifier

	// UpgradeLimiter throttles WebSocket handshakes per client IP.
	UpgradeLimiter *limiter.IPRateLimiter

	// Matches is nil when no database is configured.
	Matches MatchHistory
}

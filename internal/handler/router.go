/*
Package handler provides the HTTP surface of the Pong server: the WebSocket upgrade endpoint
and a few read-only REST endpoints, behind logging, CORS and IP-based rate limiting.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"pongrt/internal/pkg/auth/jwt"
	"pongrt/internal/pkg/limiter"
	"pongrt/internal/pkg/logx"
	"pongrt/internal/pkg/resp"
)

const (
	UpgradeRate  = 1
	UpgradeBurst = 10
)

// NewUpgradeLimiter returns the per-IP limiter used for WebSocket handshakes.
func NewUpgradeLimiter() *limiter.IPRateLimiter {
	return limiter.NewIPRateLimiter(rate.Limit(UpgradeRate), UpgradeBurst)
}

// Router sets up the HTTP routing table.
func Router(deps *AppDeps) http.Handler {
	if deps.UpgradeLimiter == nil {
		deps.UpgradeLimiter = NewUpgradeLimiter()
	}

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "pongrt",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/stats", HandleStats(deps))

		api.Group(func(authed chi.Router) {
			authed.Use(jwt.RequireIdentity(deps.Verifier))
			authed.Get("/presence", HandlePresence(deps))
			if deps.Matches != nil {
				authed.Get("/matches/recent", HandleRecentMatches(deps))
			}
		})
	})

	r.With(deps.UpgradeLimiter.Middleware).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

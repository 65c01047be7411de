package handler

import (
	"net/http"
	"strconv"
	"strings"

	"pongrt/internal/pkg/auth/jwt"
	"pongrt/internal/pkg/errs"
	"pongrt/internal/pkg/logx"
	"pongrt/internal/pkg/resp"
)

const (
	maxPresenceIDs     = 200
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

// HandleStats returns live counters of the hub.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Hub.Stats())
	}
}

// HandlePresence answers GET /api/presence?ids=1,2,3 with a map of user id to online flag.
func HandlePresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("ids")
		if raw == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		parts := strings.Split(raw, ",")
		if len(parts) > maxPresenceIDs {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		ids := make([]int64, 0, len(parts))
		for _, part := range parts {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			ids = append(ids, id)
		}

		resp.RespondSuccess(w, r, deps.Hub.Registry().Statuses(ids))
	}
}

// HandleRecentMatches returns the caller's most recent recorded matches.
func HandleRecentMatches(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := jwt.IdentityFromContext(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		limit := defaultRecentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = min(n, maxRecentLimit)
		}

		matches, err := deps.Matches.RecentMatches(r.Context(), identity.ID, limit)
		if err != nil {
			logx.Error(err, "Failed to load recent matches", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, matches)
	}
}

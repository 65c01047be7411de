package jwt

import (
	"context"
	"net/http"
	"strings"

	"pongrt/internal/app/user"
	"pongrt/internal/pkg/errs"
	"pongrt/internal/pkg/logx"
	"pongrt/internal/pkg/resp"
)

type contextKey string

const (
	// ContextIdentityKey stores the verified user.Identity in the request context.
	ContextIdentityKey contextKey = "auth_identity"
)

// RequireIdentity rejects requests without a valid "Authorization: Bearer" token with 401
// and stores the verified identity in the request context otherwise.
func RequireIdentity(verifier *Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			identity, err := verifier.Verify(parts[1])
			if err != nil {
				logx.Warn("Rejected REST call with invalid bearer token", "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), ContextIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by RequireIdentity.
func IdentityFromContext(r *http.Request) (user.Identity, bool) {
	identity, ok := r.Context().Value(ContextIdentityKey).(user.Identity)
	return identity, ok
}

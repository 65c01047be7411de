package jwt

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt"
)

// idClaimKeys lists the claim names accepted as the user id, in priority order.
// The auth service has issued tokens under each of these over time.
var idClaimKeys = []string{"id", "userId", "user_id", "uid", "sub"}

// nameClaimKeys lists the claim names accepted as the display name, in priority order.
var nameClaimKeys = []string{"name", "username", "displayName", "nickname"}

// Payload is the claim set minted by GenerateToken.
// It only exists for the dev token command and tests; verification reads jwt.MapClaims so
// that tokens from the external auth service with other key names are accepted.
type Payload struct {
	jwt.StandardClaims

	// ID is the numeric user id.
	ID int64 `json:"id"`

	// Name is the optional display name.
	Name string `json:"name,omitempty"`
}

// userIDFromClaims extracts a positive user id from the first accepted key that holds one.
func userIDFromClaims(claims jwt.MapClaims) (int64, bool) {
	for _, key := range idClaimKeys {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		if id, ok := toUserID(raw); ok {
			return id, true
		}
	}
	return 0, false
}

func toUserID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 || v != math.Trunc(v) || v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil && id > 0
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil && id > 0
	default:
		return 0, false
	}
}

// nameFromClaims returns the first non-empty accepted name claim.
func nameFromClaims(claims jwt.MapClaims) *string {
	for _, key := range nameClaimKeys {
		if s, ok := claims[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return &trimmed
			}
		}
	}
	return nil
}

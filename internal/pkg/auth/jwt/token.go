/*
Package jwt verifies the signed credential presented on the realtime handshake.

Tokens are HS256 JWTs issued by the external auth service with the shared secret. A token
yields a user.Identity; absent, malformed, expired or forged tokens fail with
ErrInvalidCredential, and well-formed tokens without a usable user id fail with
ErrMissingIdentity.
*/
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"

	"pongrt/internal/app/user"
)

const (
	// DevTokenExpiration is the lifetime of tokens minted by the dev token command.
	DevTokenExpiration = 24 * time.Hour

	// TokenIssuer identifies tokens minted by this service.
	TokenIssuer = "pongrt"
)

var (
	// ErrInvalidCredential covers absent, malformed, expired and badly signed tokens.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrMissingIdentity means the token verified but carried no usable user id.
	ErrMissingIdentity = errors.New("missing identity")
)

// Verifier validates tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secretKey.
func NewVerifier(secretKey string) *Verifier {
	return &Verifier{secret: []byte(secretKey)}
}

// Verify checks signature and expiry of tokenString and extracts the identity it carries.
// The returned Identity keeps the raw token for calls made on the user's behalf.
func (v *Verifier) Verify(tokenString string) (user.Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return user.Identity{}, fmt.Errorf("%w: token is empty", ErrInvalidCredential)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return user.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if !token.Valid {
		return user.Identity{}, fmt.Errorf("%w: token is not valid", ErrInvalidCredential)
	}

	// MapClaims.Valid skips exp when the claim is absent.
	if !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return user.Identity{}, fmt.Errorf("%w: token has no expiry", ErrInvalidCredential)
	}

	id, ok := userIDFromClaims(claims)
	if !ok {
		return user.Identity{}, ErrMissingIdentity
	}

	return user.Identity{
		ID:          id,
		DisplayName: nameFromClaims(claims),
		Token:       tokenString,
	}, nil
}

// GenerateToken signs a token for userID with an optional name.
func GenerateToken(userID int64, name string, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(duration).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		ID:   userID,
		Name: name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

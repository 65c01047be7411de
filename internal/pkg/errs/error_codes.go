/*
Package errs provides the application error type and its numeric codes.

Codes travel to clients both in REST responses and in the realtime `error` / `invite:error`
messages, so they are stable once published.
*/
package errs

// 1xxx: General request handling errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request or message rate exceeded the limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Matchmaking, invitation and room errors
const (
	// ErrInviteTargetOffline indicates that the invited user has no live connection.
	ErrInviteTargetOffline = 2301

	// ErrInviteNotFound indicates an accept/decline for an invitation that is not pending.
	ErrInviteNotFound = 2302

	// ErrInviteSelf indicates that a user tried to invite themselves.
	ErrInviteSelf = 2303

	// ErrAlreadyInMatch indicates that one of the users is already allocated to a live room.
	ErrAlreadyInMatch = 2304
)

// 3xxx: Identity and session errors
const (
	// ErrUnauthorized indicates a missing or invalid bearer credential.
	ErrUnauthorized = 3000
)

// 5xxx: Internal system errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)

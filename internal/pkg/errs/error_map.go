/*
Package errs provides the application error type and its numeric codes.

This file maps every code to its client-facing message and HTTP status.
*/
package errs

import "net/http"

var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx
	ErrInviteTargetOffline: {Code: ErrInviteTargetOffline, Message: "User %d is not online."},
	ErrInviteNotFound:      {Code: ErrInviteNotFound, Message: "This invitation is no longer available."},
	ErrInviteSelf:          {Code: ErrInviteSelf, Message: "You cannot invite yourself."},
	ErrAlreadyInMatch:      {Code: ErrAlreadyInMatch, Message: "A player is already in a match."},

	// 3xxx
	ErrUnauthorized: {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 5xxx
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}

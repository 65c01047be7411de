/*
Package errs provides the application error type and its numeric codes.

A CustomError carries a stable business code, a user-facing message and the HTTP status used
when it is returned over REST. Realtime messages (`error`, `invite:error`) carry only the code and
message.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pongrt/internal/pkg/logx"
)

// CustomError is the error structure used for client-visible failures.
type CustomError struct {
	Code    int
	Message string

	// Status is the HTTP status for REST responses. Realtime-only codes leave it at 400.
	Status int
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// Is matches any CustomError with the same code, so errors.Is works across NewError calls.
func (e *CustomError) Is(target error) bool {
	var other *CustomError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewError builds a *CustomError for a predefined code. details fill the message placeholders.
// Unknown codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	customErr, ok := errorMap[code]
	if !ok {
		logx.Warn("Unknown error code requested, using ErrUnknown.", "requested_code", code)
		customErr = errorMap[ErrUnknown]
	}

	if customErr.Status == 0 {
		customErr.Status = http.StatusBadRequest
	}

	if len(details) > 0 && strings.Contains(customErr.Message, "%") {
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	}

	return &customErr
}

package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorFillsPlaceholders(t *testing.T) {
	err := NewError(ErrInviteTargetOffline, int64(42))

	assert.Equal(t, ErrInviteTargetOffline, err.Code)
	assert.Equal(t, "User 42 is not online.", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)
}

func TestNewErrorKeepsMessagesWithoutPlaceholders(t *testing.T) {
	err := NewError(ErrInviteSelf, "ignored")
	assert.Equal(t, "You cannot invite yourself.", err.Message)
}

func TestNewErrorUnknownCode(t *testing.T) {
	err := NewError(99999)

	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestCustomErrorIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("handling invite: %w", NewError(ErrInviteNotFound))

	assert.True(t, errors.Is(wrapped, NewError(ErrInviteNotFound)))
	assert.False(t, errors.Is(wrapped, NewError(ErrInviteSelf)))
}

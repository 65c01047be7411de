/*
Package protocol defines the JSON messages exchanged over the realtime connection.

Every frame is an object with a mandatory "type" field. Inbound frames decode into one concrete
Go type per tag so handlers never inspect loosely typed payloads.
*/
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pongrt/internal/app/pong"
)

// Type is the value of the "type" field.
type Type string

// Inbound message types.
const (
	TypeLobbyJoin        Type = "lobby:join"
	TypeLobbyLeave       Type = "lobby:leave"
	TypeUserListRequest  Type = "user:list:request"
	TypeFriendsSubscribe Type = "friends:subscribe"
	TypeInvite           Type = "invite"
	TypeInviteSend       Type = "invite:send"
	TypeInviteAccepted   Type = "invite:accepted"
	TypeInviteDeclined   Type = "invite:declined"
	TypeMatchmakingJoin  Type = "matchmaking:join"
	TypeMatchmakingLeave Type = "matchmaking:leave"
	TypeGameJoin         Type = "game:join"
	TypeGameMove         Type = "game:move"
	TypeGameBegin        Type = "game:begin"
)

var (
	// ErrMalformed is returned for frames that are not a JSON object or whose payload does not validate.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownType is returned for frames whose type is not in the catalog.
	ErrUnknownType = errors.New("unknown message type")
)

// Inbound is implemented by every decoded client message.
type Inbound interface {
	MessageType() Type
}

// UserID is a user id that accepts both JSON numbers and numeric strings.
type UserID int64

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("user id %s: %w", data, err)
	}
	*u = UserID(id)
	return nil
}

type (
	LobbyJoin        struct{}
	LobbyLeave       struct{}
	UserListRequest  struct{}
	MatchmakingJoin  struct{}
	MatchmakingLeave struct{}

	FriendsSubscribe struct {
		FriendIDs []UserID `json:"friendIds"`
	}

	// InviteSend covers both "invite" and "invite:send".
	InviteSend struct {
		To UserID `json:"to"`
	}

	InviteAccept struct {
		From UserID `json:"from"`
	}

	InviteDecline struct {
		From UserID `json:"from"`
	}

	GameJoin struct {
		RoomID string `json:"roomId"`
	}

	GameMove struct {
		RoomID    string         `json:"roomId"`
		Direction pong.Direction `json:"direction"`
		Action    string         `json:"action"`
	}

	GameBegin struct {
		RoomID string `json:"roomId"`
	}
)

func (LobbyJoin) MessageType() Type        { return TypeLobbyJoin }
func (LobbyLeave) MessageType() Type       { return TypeLobbyLeave }
func (UserListRequest) MessageType() Type  { return TypeUserListRequest }
func (MatchmakingJoin) MessageType() Type  { return TypeMatchmakingJoin }
func (MatchmakingLeave) MessageType() Type { return TypeMatchmakingLeave }
func (FriendsSubscribe) MessageType() Type { return TypeFriendsSubscribe }
func (InviteSend) MessageType() Type       { return TypeInviteSend }
func (InviteAccept) MessageType() Type     { return TypeInviteAccepted }
func (InviteDecline) MessageType() Type    { return TypeInviteDeclined }
func (GameJoin) MessageType() Type         { return TypeGameJoin }
func (GameMove) MessageType() Type         { return TypeGameMove }
func (GameBegin) MessageType() Type        { return TypeGameBegin }

// Pressed interprets Action. ok is false for values that are neither a press nor a release.
func (m GameMove) Pressed() (pressed bool, ok bool) {
	switch strings.ToLower(m.Action) {
	case "press", "pressed", "keydown", "start":
		return true, true
	case "release", "released", "keyup", "stop":
		return false, true
	default:
		return false, false
	}
}

// Decode parses one frame into its concrete message type.
// The type is also returned on payload errors so callers can log it.
func Decode(data []byte) (Inbound, Type, error) {
	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Inbound
	switch envelope.Type {
	case TypeLobbyJoin:
		return LobbyJoin{}, envelope.Type, nil
	case TypeLobbyLeave:
		return LobbyLeave{}, envelope.Type, nil
	case TypeUserListRequest:
		return UserListRequest{}, envelope.Type, nil
	case TypeMatchmakingJoin:
		return MatchmakingJoin{}, envelope.Type, nil
	case TypeMatchmakingLeave:
		return MatchmakingLeave{}, envelope.Type, nil
	case TypeFriendsSubscribe:
		msg = &FriendsSubscribe{}
	case TypeInvite, TypeInviteSend:
		msg = &InviteSend{}
	case TypeInviteAccepted:
		msg = &InviteAccept{}
	case TypeInviteDeclined:
		msg = &InviteDecline{}
	case TypeGameJoin:
		msg = &GameJoin{}
	case TypeGameMove:
		msg = &GameMove{}
	case TypeGameBegin:
		msg = &GameBegin{}
	case "":
		return nil, "", fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, envelope.Type, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, envelope.Type, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	decoded := deref(msg)
	if err := validate(decoded); err != nil {
		return nil, envelope.Type, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return decoded, envelope.Type, nil
}

func deref(msg Inbound) Inbound {
	switch m := msg.(type) {
	case *FriendsSubscribe:
		return *m
	case *InviteSend:
		return *m
	case *InviteAccept:
		return *m
	case *InviteDecline:
		return *m
	case *GameJoin:
		return *m
	case *GameMove:
		return *m
	case *GameBegin:
		return *m
	}
	return msg
}

func validate(msg Inbound) error {
	switch m := msg.(type) {
	case InviteSend:
		if m.To <= 0 {
			return errors.New("to must be a positive user id")
		}
	case InviteAccept:
		if m.From <= 0 {
			return errors.New("from must be a positive user id")
		}
	case InviteDecline:
		if m.From <= 0 {
			return errors.New("from must be a positive user id")
		}
	case GameJoin:
		if m.RoomID == "" {
			return errors.New("roomId is required")
		}
	case GameBegin:
		if m.RoomID == "" {
			return errors.New("roomId is required")
		}
	case GameMove:
		if m.RoomID == "" {
			return errors.New("roomId is required")
		}
		if m.Direction != pong.Up && m.Direction != pong.Down {
			return fmt.Errorf("direction %q", m.Direction)
		}
		if _, ok := m.Pressed(); !ok {
			return fmt.Errorf("action %q", m.Action)
		}
	}
	return nil
}

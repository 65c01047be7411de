package protocol

import (
	"pongrt/internal/app/pong"
)

// Outbound message types.
const (
	TypeWelcome          Type = "welcome"
	TypeUserOnline       Type = "user:online"
	TypeUserOffline      Type = "user:offline"
	TypeUserList         Type = "user:list"
	TypeFriendsStatus    Type = "friends:status"
	TypeInviteReceived   Type = "invite:received"
	TypeInviteError      Type = "invite:error"
	TypeInviteExpired    Type = "invite:expired"
	TypeRoomStart        Type = "room:start"
	TypeGameReady        Type = "game:ready"
	TypeGameStart        Type = "game:start"
	TypeGameUpdate       Type = "game:update"
	TypeGameTimer        Type = "game:timer"
	TypeGameTimeUp       Type = "game:timeup"
	TypeSessionState     Type = "session:state"
	TypeSessionKickIntro Type = "session:kickIntro"
	TypeError            Type = "error"
)

// Session states carried by session:state.
const (
	SessionAborted = "aborted"
	SessionExpired = "expired"
	SessionClosed  = "closed"
)

// LobbyUser is one entry of user:list.
type LobbyUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

type Welcome struct {
	Type   Type    `json:"type"`
	UserID int64   `json:"userId"`
	Name   *string `json:"name"`
}

type UserOnline struct {
	Type   Type   `json:"type"`
	UserID int64  `json:"userId"`
	Name   string `json:"name,omitempty"`
}

type UserOffline struct {
	Type   Type  `json:"type"`
	UserID int64 `json:"userId"`
}

type UserList struct {
	Type  Type        `json:"type"`
	Users []LobbyUser `json:"users"`
}

type FriendsStatus struct {
	Type     Type           `json:"type"`
	Statuses map[int64]bool `json:"statuses"`
}

type InviteReceived struct {
	Type     Type   `json:"type"`
	From     int64  `json:"from"`
	FromName string `json:"fromName"`
}

// InviteDeclinedNotice tells the inviter that UserID declined.
type InviteDeclinedNotice struct {
	Type   Type  `json:"type"`
	UserID int64 `json:"userId"`
}

type InviteError struct {
	Type    Type   `json:"type"`
	To      int64  `json:"to"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type InviteExpired struct {
	Type Type  `json:"type"`
	To   int64 `json:"to"`
}

type RoomStart struct {
	Type    Type    `json:"type"`
	RoomID  string  `json:"roomId"`
	Players []int64 `json:"players"`
	Mode    string  `json:"mode"`
}

type GameReady struct {
	Type    Type    `json:"type"`
	RoomID  string  `json:"roomId"`
	Side    int     `json:"side"`
	Players []int64 `json:"players"`
}

type GameStart struct {
	Type     Type   `json:"type"`
	RoomID   string `json:"roomId"`
	Duration int    `json:"duration"`
}

// GameUpdate flattens the snapshot next to the type field.
type GameUpdate struct {
	Type Type `json:"type"`
	pong.Snapshot
}

type GameTimer struct {
	Type      Type `json:"type"`
	Remaining int  `json:"remaining"`
}

type GameTimeUp struct {
	Type   Type         `json:"type"`
	Winner pong.Outcome `json:"winner"`
	S1     int          `json:"s1"`
	S2     int          `json:"s2"`
}

type SessionState struct {
	Type   Type   `json:"type"`
	State  string `json:"state"`
	RoomID string `json:"roomId,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type SessionKickIntro struct {
	Type   Type   `json:"type"`
	Reason string `json:"reason"`
}

type Error struct {
	Type    Type   `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

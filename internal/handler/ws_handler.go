package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pongrt/internal/app/game"
	"pongrt/internal/pkg/auth/jwt"
	"pongrt/internal/pkg/logx"
)

const rejectWriteWait = 5 * time.Second

// Close reasons sent when the handshake credential is rejected.
const (
	CloseReasonInvalidCredential = "invalid credential"
	CloseReasonMissingIdentity   = "missing identity"
)

// HandleWebSocket upgrades the connection, verifies the token query parameter and hands the
// connection to the hub. A rejected credential gets a policy-violation close frame and nothing else.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, verifyErr := deps.Verifier.Verify(r.URL.Query().Get("token"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "remote_ip", logx.AnonymizeIP(r.RemoteAddr))
			return
		}

		if verifyErr != nil {
			reason := CloseReasonInvalidCredential
			if errors.Is(verifyErr, jwt.ErrMissingIdentity) {
				reason = CloseReasonMissingIdentity
			}
			logx.Warn("WebSocket connection rejected: credential not accepted.",
				"reason", reason,
				"error", verifyErr.Error(),
				"remote_ip", logx.AnonymizeIP(r.RemoteAddr),
			)
			rejectConnection(conn, reason)
			return
		}

		logx.Info("WebSocket connection established", "user_id", identity.ID, "remote_ip", logx.AnonymizeIP(r.RemoteAddr))

		game.NewClient(conn, identity, r.RemoteAddr).Serve(deps.Hub)
	}
}

func rejectConnection(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(rejectWriteWait)); err != nil {
		logx.Warn("Failed to write close frame to rejected connection.", "error", err.Error())
	}
	if err := conn.Close(); err != nil {
		logx.Warn("Failed to close rejected connection.", "error", err.Error())
	}
}

package game

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pongrt/internal/app/presence"
	"pongrt/internal/app/protocol"
	"pongrt/internal/app/user"
	"pongrt/internal/pkg/limiter"
	"pongrt/internal/pkg/logx"
)

const (
	// timeout for writing one frame.
	writeWait = 10 * time.Second

	// how long the server waits for a pong.
	pongWait = 60 * time.Second

	// ping period, must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maximum inbound frame size. Every catalog message is tiny.
	maxMessageSize = 4096

	// outbound queue length per connection. A round pushes ~60 updates per second.
	sendBuffer = 256

	// inbound frames allowed per second and burst, per connection.
	inboundRate  = 40
	inboundBurst = 80

	// WsCloseCodeSessionKicked tells the peer its session was replaced by a newer connection.
	WsCloseCodeSessionKicked = 4001
)

// ErrConnClosed is returned by Send once the connection is closing.
var ErrConnClosed = errors.New("connection closed")

// ErrSendQueueFull is returned by Send when the peer does not keep up.
var ErrSendQueueFull = errors.New("client send queue full")

// ConnState is the lifecycle of a Client.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

// Dispatcher handles the frames read from a connection.
type Dispatcher interface {
	Connect(c presence.Conn)
	Dispatch(c presence.Conn, raw []byte) error
	Disconnect(c presence.Conn)
}

// Client is one WebSocket connection with its verified identity.
type Client struct {
	conn     *websocket.Conn
	identity user.Identity
	remote   string

	send chan []byte

	// done is closed when the connection starts closing; closeFrame is written by WritePump.
	done       chan struct{}
	closeOnce  sync.Once
	closeFrame []byte

	state   atomic.Int32
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(wsConn *websocket.Conn, identity user.Identity, remoteAddr string) *Client {
	c := &Client{
		conn:     wsConn,
		identity: identity,
		remote:   remoteAddr,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		limiter:  limiter.NewMessageLimiter(inboundRate, inboundBurst),
		logger: logx.Logger().With().
			Str("component", "client").
			Int64("user_id", identity.ID).
			Str("remote_ip", logx.AnonymizeIP(remoteAddr)).
			Logger(),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Identity implements presence.Conn.
func (c *Client) Identity() user.Identity {
	return c.identity
}

// State returns the connection lifecycle state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Serve runs the connection until it closes: it registers with d, starts the write pump and reads.
func (c *Client) Serve(d Dispatcher) {
	c.state.Store(int32(StateOpen))
	go c.WritePump()
	d.Connect(c)
	c.ReadPump(d)
}

// ReadPump reads frames until the peer goes away, then detaches the client synchronously.
func (c *Client) ReadPump(d Dispatcher) {
	defer func() {
		d.Disconnect(c)
		c.closeWith(websocket.CloseNormalClosure, "")
		c.logger.Info().Msg("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, WsCloseCodeSessionKicked) {
				c.logger.Info().Err(err).Msg("Unexpected close")
			}
			return
		}

		if !c.limiter.Allow() {
			c.logger.Warn().Msg("Inbound rate limit exceeded, frame dropped")
			continue
		}

		if err := d.Dispatch(c, raw); err != nil {
			c.logger.Warn().Err(err).Int("size", len(raw)).Msg("Inbound frame ignored")
		}
	}
}

// WritePump drains the send queue to the socket and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
		c.state.Store(int32(StateClosed))
	}()

	for {
		select {
		case message := <-c.send:
			if !c.write(websocket.TextMessage, message) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.flush()
			if err := c.conn.WriteControl(websocket.CloseMessage, c.closeFrame, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to write close frame")
			}
			return
		}
	}
}

// flush writes whatever was queued before the close was requested.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if !c.write(websocket.TextMessage, message) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Msg("Write failed")
		return false
	}
	return true
}

// Send queues msg as JSON. It never blocks; a full queue drops the message.
func (c *Client) Send(msg any) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling message for client")
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return ErrSendQueueFull
	}
}

// Kick tells the peer why with session:kickIntro and closes with code 4001.
func (c *Client) Kick(reason string) {
	c.logger.Warn().Int("close_code", WsCloseCodeSessionKicked).Str("reason", reason).Msg("Kicking connection")

	_ = c.Send(protocol.SessionKickIntro{Type: protocol.TypeSessionKickIntro, Reason: reason})
	c.closeWith(WsCloseCodeSessionKicked, reason)
}

// closeWith starts closing the connection with the given close code. Later calls are no-ops.
func (c *Client) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeFrame = websocket.FormatCloseMessage(code, reason)
		c.state.Store(int32(StateClosing))
		close(c.done)
	})
}

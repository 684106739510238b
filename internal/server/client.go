package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/chatd/internal/auth"
	"github.com/Tyrowin/chatd/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one authenticated WebSocket connection. It is a rooms.Member:
// broadcasts reach it through Deliver, which never blocks, and a client that
// cannot keep up is dropped.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	srv      *Server
	addr     string
	logger   *zap.Logger

	maxMessageSize int64
	limiter        *rate.Limiter
	rateLimit      RateLimitConfig

	mu     sync.RWMutex
	closed bool

	// Channels this connection announced typing in; read pump only.
	typingIn map[int64]struct{}
}

// NewClient creates a Client for an upgraded connection whose token has
// already been verified.
func NewClient(conn *websocket.Conn, srv *Server, identity auth.Identity, addr string) *Client {
	cfg := srv.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := uuid.NewString()

	return &Client{
		id:             id,
		identity:       identity,
		conn:           conn,
		send:           make(chan []byte, cfg.SendQueueSize),
		hub:            srv.hub,
		srv:            srv,
		addr:           addr,
		logger:         srv.logger.Named("client").With(zap.String("client", id), zap.Int64("user", identity.ID)),
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        rate.NewLimiter(rate.Every(cfg.RateLimit.RefillInterval), cfg.RateLimit.Burst),
		rateLimit:      cfg.RateLimit,
		typingIn:       make(map[int64]struct{}),
	}
}

// ID implements rooms.Member.
func (c *Client) ID() string { return c.id }

// UserID implements rooms.Member.
func (c *Client) UserID() int64 { return c.identity.ID }

// Identity returns the identity bound to the connection.
func (c *Client) Identity() auth.Identity { return c.identity }

// Deliver implements rooms.Member.
func (c *Client) Deliver(payload []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Drop implements rooms.Member. Closing the send queue makes the write pump
// send a close frame, which in turn ends the read pump and its cleanup.
func (c *Client) Drop() {
	c.close()
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// reply encodes ev and queues it for this connection only.
func (c *Client) reply(ev events.Outbound) {
	payload, err := events.Encode(ev)
	if err != nil {
		c.logger.Error("encode reply", zap.Error(err))
		return
	}
	if !c.Deliver(payload) {
		c.logger.Warn("reply dropped", zap.String("event", ev.EventName()))
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// logReadError logs why the read loop is ending.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", zap.Int64("limit", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warn("unexpected WebSocket close", zap.Error(err))
	default:
		c.logger.Warn("WebSocket read error", zap.Error(err))
	}
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Warn("rate limit exceeded; discarding frame",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("refill", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

// processMessage decodes and handles one inbound frame. A panic while
// handling is contained to the frame.
func (c *Client) processMessage(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic while handling frame",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	ev, err := events.Decode(raw)
	if err != nil {
		c.logger.Debug("rejecting frame", zap.Error(err))
		reason := reasonMalformedFrame
		if errors.Is(err, events.ErrUnknownEvent) {
			reason = reasonUnknownEvent
		}
		c.reply(events.ErrorEvent{Error: reason})
		return
	}
	c.handle(ev)
}

// rejectThrottled tells the sender that a message discarded by the rate
// limiter was not sent. Other discarded frames get no answer.
func (c *Client) rejectThrottled(raw []byte) {
	ev, err := events.Decode(raw)
	if err != nil {
		return
	}
	switch ev := ev.(type) {
	case *events.SendMessageEvent:
		c.reply(events.SendFailedEvent{ChannelID: ev.ChannelID, ClientMessageID: ev.ClientMessageID, Error: reasonRateLimited})
	case *events.SendFileEvent:
		c.reply(events.SendFailedEvent{ChannelID: ev.ChannelID, ClientMessageID: ev.ClientMessageID, Error: reasonRateLimited})
	}
}

func (c *Client) readPump() {
	defer c.cleanup()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			c.rejectThrottled(rawMessage)
			continue
		}

		c.processMessage(rawMessage)
	}
}

// cleanup releases everything the connection holds. Messages already
// persisted on its behalf have been broadcast by the time it runs, since
// handling is synchronous in the read pump.
func (c *Client) cleanup() {
	left := c.srv.rooms.LeaveAll(c)

	channels := make([]int64, 0, len(c.typingIn))
	for id := range c.typingIn {
		channels = append(channels, id)
	}
	c.srv.typing.Clear(c.identity, channels)

	c.hub.unregisterClient(c)
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error closing connection in readPump", zap.Error(err))
	}
	c.logger.Debug("connection released", zap.Int("rooms", len(left)))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error closing connection in writePump", zap.Error(err))
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing close message", zap.Error(err))
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn("error writing ping message", zap.Error(err))
		return false
	}
	return true
}

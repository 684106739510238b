package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/auth"
	"github.com/Tyrowin/chatd/internal/messages"
)

// WebSocketHandler authenticates the request and upgrades it. The token is
// checked before the upgrade so a refused client gets a plain 401 and never
// holds a socket.
func (s *Server) WebSocketHandler(c *gin.Context) {
	identity, err := s.auth.Authenticate(auth.TokenFromRequest(c.Request))
	if err != nil {
		s.logger.Info("refusing unauthenticated connection",
			zap.String("remote", c.Request.RemoteAddr),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, s, identity, c.Request.RemoteAddr)
	if !s.hub.Register(client) {
		_ = conn.Close()
	}
}

// HealthHandler reports liveness and the number of live connections and rooms.
func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.hub.Len(),
		"rooms":       s.rooms.Len(),
	})
}

// IndexHandler answers the root path the way simple uptime probes expect.
func (s *Server) IndexHandler(c *gin.Context) {
	c.String(http.StatusOK, "chatd is running")
}

// HistoryHandler lists a channel's messages, oldest first, in the same shape
// as live receiveMessage events.
func (s *Server) HistoryHandler(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
		return
	}

	channelID, err := strconv.ParseInt(c.Param("channelId"), 10, 64)
	if err != nil || channelID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid channel id"})
		return
	}

	history, err := s.pipeline.History(c.Request.Context(), identity, channelID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, messages.FormatAll(history))
	case errors.Is(err, messages.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": reasonForbiddenChannel})
	default:
		s.logger.Error("list history", zap.Int64("channel", channelID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not load messages"})
	}
}

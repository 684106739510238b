package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/auth"
)

// SetupRoutes configures the gin engine with every route the server exposes.
func SetupRoutes(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger.Named("http")))

	r.GET("/", s.IndexHandler)
	r.GET("/healthz", s.HealthHandler)
	r.GET("/ws", s.WebSocketHandler)

	api := r.Group("/api", auth.Middleware(s.auth))
	api.GET("/channels/:channelId/messages", s.HistoryHandler)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

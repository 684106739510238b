package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/auth"
	"github.com/Tyrowin/chatd/internal/directory"
	"github.com/Tyrowin/chatd/internal/messages"
	"github.com/Tyrowin/chatd/internal/relay"
	"github.com/Tyrowin/chatd/internal/rooms"
	"github.com/Tyrowin/chatd/internal/typing"
)

// Deps are the collaborators a Server talks to.
type Deps struct {
	Authenticator *auth.Authenticator
	Store         messages.Store
	Directory     directory.Directory
	Logger        *zap.Logger
}

// Server wires the chat engine behind its HTTP and WebSocket surface.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	auth     *auth.Authenticator
	hub      *Hub
	rooms    *rooms.Registry
	typing   *typing.Tracker
	access   *directory.Access
	pipeline *messages.Pipeline
	relay    *relay.Relay
	origins  *originPolicy
	upgrader websocket.Upgrader
}

// New builds a Server. Start must be called before connections are
// accepted.
func New(cfg Config, deps Deps) *Server {
	cfg = sanitizeConfig(cfg)
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := rooms.NewRegistry(logger)
	access := directory.NewAccess(deps.Directory)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		auth:     deps.Authenticator,
		hub:      NewHub(logger),
		rooms:    registry,
		typing:   typing.NewTracker(registry, cfg.TypingTimeout, logger),
		access:   access,
		pipeline: messages.NewPipeline(deps.Store, access, registry, logger),
		relay:    relay.New(access, registry, logger),
		origins:  newOriginPolicy(cfg.AllowedOrigins, logger.Named("origin")),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Start runs the hub in its own goroutine.
func (s *Server) Start() {
	go s.hub.Run()
	s.logger.Info("hub started and ready to manage WebSocket connections")
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	return SetupRoutes(s)
}

// Relay is where out-of-band channel announcements enter.
func (s *Server) Relay() *relay.Relay {
	return s.relay
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// Shutdown closes every connection and waits up to timeout for their
// goroutines, then stops pending typing timers.
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.hub.Shutdown(timeout)
	s.typing.Close()
	return err
}

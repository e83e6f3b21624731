// Package web provides the hostd HTTP surface: login sessions,
// the stream-token proxy, and a live status feed.
package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
	"github.com/lumenwave/go-host/pkg/broker"
	"github.com/lumenwave/go-host/pkg/hub"
)

// SessionCookie is the login session cookie name.
const SessionCookie = "lw_session"

// TokenExchanger exchanges a persona configuration for a stream token.
// *anam.Client satisfies this.
type TokenExchanger interface {
	SessionToken(ctx context.Context, persona anam.PersonaConfig) (string, error)
}

// Config holds server configuration.
type Config struct {
	Port string

	// Password is the shared access secret. Login succeeds when the
	// presented password matches it; it is also accepted directly on
	// protected routes.
	Password string

	// SecureCookies adds the Secure flag to session cookies.
	SecureCookies bool
}

// Server is the hostd HTTP server.
type Server struct {
	app   *fiber.App
	cfg   Config
	store *broker.Store
	anam  TokenExchanger

	statusHub *hub.Hub
}

// NewServer wires the HTTP surface over the session store and the
// upstream token exchanger.
func NewServer(cfg Config, store *broker.Store, exchanger TokenExchanger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		anam:      exchanger,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "hostd",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Protect /api routes except login, logout and auth-check.
	app.Use("/api", s.requireAuth)

	app.Post("/api/login", s.handleLogin)
	app.Post("/api/logout", s.handleLogout)
	app.Get("/api/auth-check", s.handleAuthCheck)
	app.Post("/api/anam/session-token", s.handleSessionToken)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Listen starts the server and the status hub.
func (s *Server) Listen() error {
	go s.statusHub.Run()
	log.Info("hostd listening", "port", s.cfg.Port)
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// PublishStatus broadcasts a status event to all dashboard clients.
func (s *Server) PublishStatus(v any) {
	s.statusHub.BroadcastJSON(v)
}

// handleStatusWS serves the live status feed.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}

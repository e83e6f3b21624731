package web

import "github.com/gofiber/fiber/v2"

// Routes under /api that are reachable without credentials.
// auth-check performs its own check so it can return the username.
var openRoutes = map[string]bool{
	"/api/login":      true,
	"/api/logout":     true,
	"/api/auth-check": true,
}

// sessionID extracts the presented session id from cookie or header.
func sessionID(c *fiber.Ctx) string {
	if sid := c.Cookies(SessionCookie); sid != "" {
		return sid
	}
	return c.Get("x-session-id")
}

// presentedPassword extracts the shared secret from header or query.
func presentedPassword(c *fiber.Ctx) string {
	if pass := c.Get("x-access-password"); pass != "" {
		return pass
	}
	return c.Query("password")
}

// authorized checks the request's credentials: a live session id (which
// slides its expiry) or the shared access password.
func (s *Server) authorized(c *fiber.Ctx) bool {
	if sid := sessionID(c); sid != "" && s.store.Validate(sid) {
		return true
	}
	if pass := presentedPassword(c); pass != "" && pass == s.cfg.Password {
		return true
	}
	return false
}

// requireAuth gates protected /api routes.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	if openRoutes[c.Path()] {
		return c.Next()
	}
	if !s.authorized(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}
	return c.Next()
}

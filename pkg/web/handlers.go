package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
	"github.com/lumenwave/go-host/pkg/broker"
)

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// setSessionCookie writes the HttpOnly session cookie.
func (s *Server) setSessionCookie(c *fiber.Ctx, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(broker.SessionTTL.Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		Secure:   s.cfg.SecureCookies,
	})
}

// clearSessionCookie expires the session cookie.
func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		SameSite: fiber.CookieSameSiteStrictMode,
		Secure:   s.cfg.SecureCookies,
	})
}

// handleLogin checks the shared password and issues a session.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.Password != s.cfg.Password {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}

	id := s.store.Create(req.Username)
	s.setSessionCookie(c, id)

	log.Info("login", "username", req.Username)
	s.PublishStatus(fiber.Map{"event": "login", "username": req.Username})

	return c.JSON(fiber.Map{"ok": true, "sessionId": id})
}

// handleLogout deletes the session record and clears the cookie.
// Always returns 200.
func (s *Server) handleLogout(c *fiber.Ctx) error {
	if sid := sessionID(c); sid != "" {
		s.store.Delete(sid)
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"ok": true})
}

// handleAuthCheck reports whether the presented credentials are valid.
func (s *Server) handleAuthCheck(c *fiber.Ctx) error {
	if sid := sessionID(c); sid != "" && s.store.Validate(sid) {
		username := ""
		if sess, ok := s.store.Lookup(sid); ok {
			username = sess.Username
		}
		return c.JSON(fiber.Map{"ok": true, "username": username})
	}

	if pass := presentedPassword(c); pass != "" && pass == s.cfg.Password {
		return c.JSON(fiber.Map{"ok": true, "username": ""})
	}

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized",
	})
}

// SessionTokenRequest is the body of POST /api/anam/session-token.
type SessionTokenRequest struct {
	PersonaConfig anam.PersonaConfig `json:"personaConfig"`
}

// handleSessionToken exchanges a persona config for a stream token via
// the upstream API. The server-held key never reaches the client.
func (s *Server) handleSessionToken(c *fiber.Ctx) error {
	var req SessionTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "personaConfig required",
		})
	}
	if req.PersonaConfig.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "personaConfig required",
		})
	}

	token, err := s.anam.SessionToken(c.Context(), req.PersonaConfig)
	if err != nil {
		var apiErr *anam.APIError
		if errors.As(err, &apiErr) {
			log.Error("upstream token exchange failed",
				"status", apiErr.StatusCode, "body", apiErr.Body)
		} else {
			log.Error("token exchange failed", "error", err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.PublishStatus(fiber.Map{"event": "session-token-issued"})

	return c.JSON(fiber.Map{"sessionToken": token})
}

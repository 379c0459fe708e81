package auth

import (
	"backend-travelplanner/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// SessionLocal is the fiber locals key holding the request Session.
const SessionLocal = "session"

// Session is the authenticated caller of a request. It is created by
// JWTMiddleware and handed to services as a plain value.
type Session struct {
	UserID string
}

// SessionFrom returns the request session, if any.
func SessionFrom(c *fiber.Ctx) (Session, bool) {
	s, ok := c.Locals(SessionLocal).(Session)
	if !ok || s.UserID == "" {
		return Session{}, false
	}
	return s, true
}

// RequireSession is SessionFrom for handlers behind the middleware; a
// missing session becomes an authentication error.
func RequireSession(c *fiber.Ctx) (Session, error) {
	s, ok := SessionFrom(c)
	if !ok {
		return Session{}, apperr.Authentication("login required")
	}
	return s, nil
}

func setSession(c *fiber.Ctx, s Session) {
	c.Locals(SessionLocal, s)
	c.Locals("user_id", s.UserID)
}

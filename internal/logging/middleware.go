package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Middleware logs one line per request. Handler errors are passed through
// so the app error handler still renders them.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		ev := Info()
		if status >= fiber.StatusInternalServerError {
			ev = Error().Err(err)
		}
		ev = ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start))
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
			ev = ev.Str("user_id", uid)
		}
		ev.Msg("request")
		return err
	}
}

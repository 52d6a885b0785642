package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AccessLogger logs every request with method, path, status and latency.
func AccessLogger(zlog zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		requestID, _ := c.Locals("request_id").(string)

		evt := zlog.Info()
		switch {
		case status >= 500:
			evt = zlog.Error()
		case status >= 400:
			evt = zlog.Warn()
		}

		evt.Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Msg("request")

		return err
	}
}

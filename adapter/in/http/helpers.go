// Package http provides the inbound HTTP handlers.
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var ErrUnauthorized = errors.New("unauthorized")

// GetUserEmail extracts the authenticated email set by the JWT middleware.
func GetUserEmail(c *fiber.Ctx) (string, error) {
	email, ok := c.Locals("user_email").(string)
	if !ok || email == "" {
		return "", ErrUnauthorized
	}
	return email, nil
}

package http

import (
	"mailtriage/core/port/out"
	"mailtriage/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// EmailHandler exposes read-only views over ingested emails.
type EmailHandler struct {
	emails out.EmailRepository
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(emails out.EmailRepository) *EmailHandler {
	return &EmailHandler{emails: emails}
}

func (h *EmailHandler) Register(app fiber.Router) {
	grp := app.Group("/emails")
	grp.Get("/recent", h.Recent)
	grp.Get("/count", h.Count)
}

// Recent returns up to limit emails, newest first.
func (h *EmailHandler) Recent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	emails := h.emails.ListRecent(c.Context(), limit)
	return response.OKWithMeta(c, emails, &response.Meta{Limit: limit})
}

// Count returns the total number of stored emails.
func (h *EmailHandler) Count(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"count": h.emails.Count(c.Context())})
}

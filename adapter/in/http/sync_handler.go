package http

import (
	"errors"

	"mailtriage/core/service/auth"
	"mailtriage/core/service/sync"
	"mailtriage/pkg/apperr"
	"mailtriage/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler triggers ingestion batches over HTTP.
type SyncHandler struct {
	svc        *sync.Service
	defaultMax int64
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc *sync.Service, defaultMax int64) *SyncHandler {
	if defaultMax <= 0 {
		defaultMax = 10
	}
	return &SyncHandler{svc: svc, defaultMax: defaultMax}
}

func (h *SyncHandler) Register(app fiber.Router) {
	app.Post("/sync", h.Run)
}

type syncRequest struct {
	Email     string `json:"email"`
	MaxEmails int64  `json:"max_emails"`
	Query     string `json:"query"`
}

// Run executes a batch for the authenticated user. The request may target
// a different mailbox email than the login identity, since the two are
// linked through the same local user record.
func (h *SyncHandler) Run(c *fiber.Ctx) error {
	var req syncRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperr.BadRequest("invalid request body")
	}

	if req.Email == "" {
		email, err := GetUserEmail(c)
		if err != nil {
			return apperr.MissingField("email")
		}
		req.Email = email
	}
	if req.MaxEmails <= 0 {
		req.MaxEmails = h.defaultMax
	}

	summary, err := h.svc.RunBatch(c.Context(), req.Email, req.MaxEmails, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrSyncInProgress):
			return apperr.SyncInProgress()
		case errors.Is(err, auth.ErrReauthRequired):
			return apperr.AuthRequired("gmail authorization was revoked, reconnect the account")
		case errors.Is(err, auth.ErrNoSession):
			return apperr.AuthRequired("no gmail account connected for this user")
		default:
			return apperr.Internal("sync failed").WithError(err)
		}
	}

	return response.OK(c, summary)
}

package http

import (
	"errors"
	"strings"

	"mailtriage/core/port/out"
	"mailtriage/core/service/auth"
	"mailtriage/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
)

// AuthHandler serves signup, login and the Gmail OAuth flow.
type AuthHandler struct {
	identity out.IdentityProvider
	users    out.UserRepository
	oauth    *auth.OAuthService
	scopes   []string
}

// NewAuthHandler creates a new AuthHandler. scopes is the fallback when
// the token response does not carry the granted scope set.
func NewAuthHandler(identity out.IdentityProvider, users out.UserRepository, oauthSvc *auth.OAuthService, scopes []string) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		users:    users,
		oauth:    oauthSvc,
		scopes:   scopes,
	}
}

func (h *AuthHandler) Register(app fiber.Router) {
	grp := app.Group("/auth")
	grp.Post("/signup", h.SignUp)
	grp.Post("/login", h.Login)
	grp.Get("/gmail", h.GmailConnect)
	grp.Get("/gmail/callback", h.GmailCallback)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authUserResponse struct {
	ID                   string `json:"id"`
	DBUserID             int64  `json:"db_user_id"`
	Email                string `json:"email"`
	ConfirmationRequired bool   `json:"confirmation_required,omitempty"`
}

func (h *AuthHandler) parseCredentials(c *fiber.Ctx) (*credentialsRequest, error) {
	if h.identity == nil {
		return nil, apperr.New(apperr.CodeConfigError, "identity provider not configured", fiber.StatusServiceUnavailable)
	}

	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, apperr.BadRequest("invalid request body")
	}
	if req.Email == "" {
		return nil, apperr.MissingField("email")
	}
	if req.Password == "" {
		return nil, apperr.MissingField("password")
	}
	return &req, nil
}

// SignUp registers an account with the identity provider and mirrors it
// into the local users table.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	req, err := h.parseCredentials(c)
	if err != nil {
		return err
	}

	user, err := h.identity.SignUp(c.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, out.ErrAlreadyRegistered):
			return apperr.AlreadyExists("email")
		case errors.Is(err, out.ErrWeakPassword):
			return apperr.BadRequest("password too weak")
		default:
			return apperr.ExternalError("identity provider", err)
		}
	}

	externalID := user.ID
	dbUserID, err := h.users.Upsert(c.Context(), user.Email, &externalID)
	if err != nil {
		return apperr.DatabaseError("create user", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "signup successful",
		"user": authUserResponse{
			ID:                   user.ID,
			DBUserID:             dbUserID,
			Email:                user.Email,
			ConfirmationRequired: !user.Confirmed,
		},
	})
}

// Login authenticates against the identity provider and returns its
// session token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	req, err := h.parseCredentials(c)
	if err != nil {
		return err
	}

	result, err := h.identity.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, out.ErrInvalidCredentials) {
			return apperr.BadRequest("invalid credentials")
		}
		return apperr.ExternalError("identity provider", err)
	}

	externalID := result.User.ID
	dbUserID, err := h.users.Upsert(c.Context(), result.User.Email, &externalID)
	if err != nil {
		return apperr.DatabaseError("update user", err)
	}

	return c.JSON(fiber.Map{
		"message": "login successful",
		"user": authUserResponse{
			ID:       result.User.ID,
			DBUserID: dbUserID,
			Email:    result.User.Email,
		},
		"access_token": result.AccessToken,
	})
}

// GmailConnect starts the OAuth consent flow with a 302 to the provider.
func (h *AuthHandler) GmailConnect(c *fiber.Ctx) error {
	url, err := h.oauth.BeginAuth(c.Context())
	if err != nil {
		return apperr.Internal("failed to start authorization").WithError(err)
	}
	return c.Redirect(url, fiber.StatusFound)
}

// GmailCallback completes the OAuth flow: validates state, exchanges the
// code, verifies the session and persists the credential against the
// mailbox's account email.
func (h *AuthHandler) GmailCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		return apperr.MissingField("code")
	}
	if state == "" {
		return apperr.MissingField("state")
	}

	session, token, err := h.oauth.CompleteAuth(c.Context(), code, state)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			return apperr.BadRequest("invalid or expired state")
		}
		return apperr.OAuthFailed("gmail", err)
	}

	userID, err := h.users.Upsert(c.Context(), session.AccountEmail(), nil)
	if err != nil {
		return apperr.DatabaseError("store user", err)
	}

	if err := h.oauth.SaveToken(c.Context(), userID, token, h.grantedScopes(token)); err != nil {
		return apperr.DatabaseError("store credentials", err)
	}

	return c.JSON(fiber.Map{
		"message":    "Gmail account connected successfully",
		"user_email": session.AccountEmail(),
	})
}

// grantedScopes prefers the scope set the token response reports over the
// configured request set.
func (h *AuthHandler) grantedScopes(token *oauth2.Token) []string {
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		return strings.Fields(scope)
	}
	return h.scopes
}

// Package auth drives the OAuth flow and builds verified mailbox sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailtriage/core/domain"
	"mailtriage/core/port/out"
	"mailtriage/pkg/logger"

	"golang.org/x/oauth2"
)

var (
	// ErrNoSession means no usable mailbox session can be built for the
	// user: either OAuth never completed or the stored tokens are dead.
	ErrNoSession = errors.New("no mailbox session available")
	// ErrReauthRequired means the refresh token was rejected and the user
	// must go through the consent flow again.
	ErrReauthRequired = errors.New("reauthorization required")
	// ErrInvalidState means the callback carried an unknown, expired or
	// already-used state token.
	ErrInvalidState = errors.New("invalid oauth state")
)

// stateTTL bounds how long a user can sit on the consent screen.
const stateTTL = 10 * time.Minute

// OAuthService coordinates the provider OAuth dance and token storage.
type OAuthService struct {
	provider out.MailProvider
	states   out.StateStore
	creds    out.CredentialRepository
}

// NewOAuthService creates a new OAuthService.
func NewOAuthService(provider out.MailProvider, states out.StateStore, creds out.CredentialRepository) *OAuthService {
	return &OAuthService{
		provider: provider,
		states:   states,
		creds:    creds,
	}
}

// BeginAuth mints a one-time state token and returns the consent URL.
func (s *OAuthService) BeginAuth(ctx context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	if err := s.states.Store(ctx, state, stateTTL); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// CompleteAuth validates the callback state, exchanges the code and builds
// a verified session. The caller persists the token against the user the
// session's account email resolves to.
func (s *OAuthService) CompleteAuth(ctx context.Context, code, state string) (out.MailSession, *oauth2.Token, error) {
	if err := s.states.Consume(ctx, state); err != nil {
		return nil, nil, ErrInvalidState
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("code exchange failed: %w", err)
	}

	session, err := s.provider.NewSession(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("session verification failed: %w", err)
	}

	return session, token, nil
}

// SaveToken persists token material for a user, overwriting any prior
// credential.
func (s *OAuthService) SaveToken(ctx context.Context, userID int64, token *oauth2.Token, scopes []string) error {
	return s.creds.Save(ctx, credentialFromToken(userID, token, scopes))
}

// BuildSession loads the user's stored credential and turns it into a
// verified session, refreshing the access token at most once when it has
// expired. Every failure mode collapses to ErrNoSession so callers have a
// single signal for "this user needs to (re)connect".
func (s *OAuthService) BuildSession(ctx context.Context, userID int64) (out.MailSession, error) {
	cred, err := s.creds.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	token := tokenFromCredential(cred)

	if cred.Expired(time.Now()) {
		if !cred.Refreshable() {
			return nil, fmt.Errorf("%w: token expired and no refresh token stored", ErrNoSession)
		}

		newToken, err := s.provider.Refresh(ctx, token)
		if err != nil {
			if isGrantRevoked(err) {
				logger.Warn("Refresh token rejected for user %d, reauthorization required", userID)
				return nil, fmt.Errorf("%w: %v", ErrReauthRequired, err)
			}
			return nil, fmt.Errorf("%w: refresh failed: %v", ErrNoSession, err)
		}

		// A refresh response may omit the refresh token; keep the old one.
		if newToken.RefreshToken == "" {
			newToken.RefreshToken = token.RefreshToken
		}
		token = newToken

		if err := s.creds.Save(ctx, credentialFromToken(userID, token, cred.Scopes)); err != nil {
			logger.WithError(err).Warn("Failed to persist refreshed token for user %d", userID)
		}
	}

	session, err := s.provider.NewSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return session, nil
}

// isGrantRevoked detects the provider telling us the refresh token is dead
// rather than a transient failure.
func isGrantRevoked(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "revoked")
}

func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func credentialFromToken(userID int64, token *oauth2.Token, scopes []string) *domain.Credential {
	cred := &domain.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       scopes,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		cred.Expiry = &expiry
	}
	return cred
}

func tokenFromCredential(cred *domain.Credential) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
	}
	if cred.Expiry != nil {
		token.Expiry = *cred.Expiry
	}
	return token
}

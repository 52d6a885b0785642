package out

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// MailMessage is a fetched message reduced to the fields ingestion needs.
// Body is already extracted plain text (or the extractor's sentinel).
type MailMessage struct {
	ID         string
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// MailSession is a live, verified handle on one user's mailbox.
type MailSession interface {
	// AccountEmail returns the verified address the session is bound to.
	AccountEmail() string
	// AccountID returns the provider's account identifier.
	AccountID() string
	// ListMessages returns message ids, at most max (silently clamped to
	// the provider ceiling). An empty query scopes to the inbox. Zero
	// matches and provider errors both yield an empty slice.
	ListMessages(ctx context.Context, max int64, query string) []string
	// FetchMessage returns the full message, or nil when the provider
	// reports not-found or permission-denied for this id.
	FetchMessage(ctx context.Context, messageID string) (*MailMessage, error)
}

// MailProvider drives the OAuth dance against the mail provider and builds
// verified sessions from token material.
type MailProvider interface {
	// AuthCodeURL builds the consent-screen URL carrying the state token.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Refresh obtains a fresh access token using the refresh token.
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
	// NewSession builds a session from a token and verifies it with one
	// lightweight profile call.
	NewSession(ctx context.Context, token *oauth2.Token) (MailSession, error)
}

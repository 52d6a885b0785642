// Package gmail provides the Gmail OAuth and mailbox adapter.
package gmail

import (
	"context"
	"fmt"
	"os"
	"time"

	"mailtriage/core/port/out"
	"mailtriage/pkg/httputil"
	"mailtriage/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// maxListResults is the Gmail API ceiling for messages.list.
const maxListResults = 500

// clampListMax bounds a requested page size to what the API accepts.
// Non-positive values ask for as much as possible.
func clampListMax(max int64) int64 {
	if max <= 0 || max > maxListResults {
		return maxListResults
	}
	return max
}

// Config holds Gmail adapter configuration. CredentialsFile takes
// precedence; otherwise ClientID/ClientSecret are used directly.
type Config struct {
	CredentialsFile string
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	Scopes          []string
}

// Provider implements out.MailProvider for Gmail.
type Provider struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
}

// NewProvider creates a new Gmail provider from OAuth client settings.
func NewProvider(cfg *Config) (*Provider, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gmail.GmailReadonlyScope}
	}

	var config *oauth2.Config
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		config, err = google.ConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		if cfg.RedirectURL != "" {
			config.RedirectURL = cfg.RedirectURL
		}
	} else {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("gmail oauth client is not configured")
		}
		config = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s: state changed from %s to %s", name, from.String(), to.String())
		},
		// Client errors are the caller's problem, not upstream health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			_, ok := err.(*nonCircuitError)
			return ok
		},
	}

	return &Provider{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
	}, nil
}

// AuthCodeURL builds the consent-screen URL carrying the state token.
// Offline access plus forced approval guarantees a refresh token on first
// consent; include_granted_scopes keeps previously granted scopes.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh obtains a fresh access token using the refresh token.
func (p *Provider) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}
	src := p.config.TokenSource(ctx, token)
	newToken, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return newToken, nil
}

// NewSession builds a mailbox session from a token and verifies it with a
// profile call.
func (p *Provider) NewSession(ctx context.Context, token *oauth2.Token) (out.MailSession, error) {
	// Route the oauth2 transport over the pooled Gmail client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.NewClient(httputil.GmailClientConfig()))
	client := p.config.Client(ctx, token)

	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	var profile *gmail.Profile
	err = p.execute("GetProfile", func() error {
		var callErr error
		profile, callErr = service.Users.GetProfile("me").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify gmail session: %w", err)
	}

	return &Session{
		provider: p,
		service:  service,
		email:    profile.EmailAddress,
	}, nil
}

// Session implements out.MailSession against one verified Gmail account.
type Session struct {
	provider *Provider
	service  *gmail.Service
	email    string
}

// AccountEmail returns the verified address the session is bound to.
func (s *Session) AccountEmail() string {
	return s.email
}

// AccountID returns the provider's account identifier. Gmail uses the
// address itself.
func (s *Session) AccountID() string {
	return s.email
}

// ListMessages returns message ids, at most max (clamped to the API
// ceiling). An empty query scopes to the inbox. Zero matches and API
// errors both yield an empty slice.
func (s *Session) ListMessages(ctx context.Context, max int64, query string) []string {
	req := s.service.Users.Messages.List("me").MaxResults(clampListMax(max))
	if query != "" {
		req = req.Q(query)
	} else {
		req = req.LabelIds("INBOX")
	}

	var resp *gmail.ListMessagesResponse
	err := s.provider.execute("ListMessages", func() error {
		var callErr error
		resp, callErr = req.Context(ctx).Do()
		return callErr
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to list messages for %s", s.email)
		return []string{}
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids
}

// FetchMessage returns the full message, or nil when the API reports
// not-found or permission-denied for this id.
func (s *Session) FetchMessage(ctx context.Context, messageID string) (*out.MailMessage, error) {
	var msg *gmail.Message
	err := s.provider.execute("GetMessage", func() error {
		var callErr error
		msg, callErr = s.service.Users.Messages.Get("me", messageID).
			Format("full").
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok {
			switch apiErr.Code {
			case 404, 403:
				logger.Warn("Message %s inaccessible (status %d), skipping", messageID, apiErr.Code)
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	return parseMessage(msg), nil
}

// execute wraps a Gmail API call with circuit breaker protection. Only
// server-side failures trip the breaker; client errors pass through.
func (p *Provider) execute(operation string, fn func() error) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		logger.WithError(err).Warn("Gmail %s failed, breaker state=%s", operation, p.cb.State().String())
	}

	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

var _ out.MailProvider = (*Provider)(nil)
var _ out.MailSession = (*Session)(nil)

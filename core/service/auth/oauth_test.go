package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mailtriage/core/domain"
	"mailtriage/core/port/out"

	"golang.org/x/oauth2"
)

type fakeSession struct {
	email string
}

func (f *fakeSession) AccountEmail() string { return f.email }
func (f *fakeSession) AccountID() string    { return f.email }
func (f *fakeSession) ListMessages(ctx context.Context, max int64, query string) []string {
	return nil
}
func (f *fakeSession) FetchMessage(ctx context.Context, id string) (*out.MailMessage, error) {
	return nil, nil
}

type fakeProvider struct {
	exchangeToken *oauth2.Token
	exchangeErr   error
	refreshToken  *oauth2.Token
	refreshErr    error
	refreshCalls  int
	sessionErr    error
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://auth.example.com/consent?state=" + state
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.exchangeToken, f.exchangeErr
}

func (f *fakeProvider) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

func (f *fakeProvider) NewSession(ctx context.Context, token *oauth2.Token) (out.MailSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &fakeSession{email: "user@example.com"}, nil
}

type fakeStateStore struct {
	stored     map[string]time.Duration
	consumeErr error
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{stored: make(map[string]time.Duration)}
}

func (f *fakeStateStore) Store(ctx context.Context, state string, ttl time.Duration) error {
	f.stored[state] = ttl
	return nil
}

func (f *fakeStateStore) Consume(ctx context.Context, state string) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	if _, ok := f.stored[state]; !ok {
		return errors.New("unknown state")
	}
	delete(f.stored, state)
	return nil
}

type fakeCredRepo struct {
	cred      *domain.Credential
	loadErr   error
	saveErr   error
	saved     *domain.Credential
	saveCalls int
}

func (f *fakeCredRepo) Save(ctx context.Context, cred *domain.Credential) error {
	f.saveCalls++
	f.saved = cred
	return f.saveErr
}

func (f *fakeCredRepo) Load(ctx context.Context, userID int64) (*domain.Credential, error) {
	return f.cred, f.loadErr
}

func TestBeginAuth(t *testing.T) {
	states := newFakeStateStore()
	svc := NewOAuthService(&fakeProvider{}, states, &fakeCredRepo{})

	url, err := svc.BeginAuth(context.Background())
	if err != nil {
		t.Fatalf("BeginAuth() error = %v", err)
	}
	if len(states.stored) != 1 {
		t.Fatalf("stored %d states, want 1", len(states.stored))
	}
	for state, ttl := range states.stored {
		if !strings.Contains(url, state) {
			t.Errorf("URL %q does not carry state %q", url, state)
		}
		if ttl != stateTTL {
			t.Errorf("state TTL = %v, want %v", ttl, stateTTL)
		}
	}
}

func TestCompleteAuthInvalidState(t *testing.T) {
	svc := NewOAuthService(&fakeProvider{}, newFakeStateStore(), &fakeCredRepo{})

	_, _, err := svc.CompleteAuth(context.Background(), "code", "never-stored")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("CompleteAuth() error = %v, want ErrInvalidState", err)
	}
}

func TestCompleteAuthExchanges(t *testing.T) {
	provider := &fakeProvider{
		exchangeToken: &oauth2.Token{AccessToken: "at", RefreshToken: "rt"},
	}
	states := newFakeStateStore()
	states.stored["s1"] = stateTTL
	svc := NewOAuthService(provider, states, &fakeCredRepo{})

	session, token, err := svc.CompleteAuth(context.Background(), "code", "s1")
	if err != nil {
		t.Fatalf("CompleteAuth() error = %v", err)
	}
	if session.AccountEmail() != "user@example.com" {
		t.Errorf("AccountEmail() = %q", session.AccountEmail())
	}
	if token.AccessToken != "at" {
		t.Errorf("AccessToken = %q, want at", token.AccessToken)
	}
	if _, ok := states.stored["s1"]; ok {
		t.Error("state not consumed")
	}
}

func TestBuildSessionNoCredential(t *testing.T) {
	creds := &fakeCredRepo{loadErr: errors.New("not found")}
	svc := NewOAuthService(&fakeProvider{}, newFakeStateStore(), creds)

	_, err := svc.BuildSession(context.Background(), 1)
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("BuildSession() error = %v, want ErrNoSession", err)
	}
}

func TestBuildSessionValidToken(t *testing.T) {
	future := time.Now().Add(time.Hour)
	provider := &fakeProvider{}
	creds := &fakeCredRepo{cred: &domain.Credential{
		UserID:      1,
		AccessToken: "at",
		Expiry:      &future,
	}}
	svc := NewOAuthService(provider, newFakeStateStore(), creds)

	session, err := svc.BuildSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("BuildSession() error = %v", err)
	}
	if session == nil {
		t.Fatal("BuildSession() returned nil session")
	}
	if provider.refreshCalls != 0 {
		t.Errorf("Refresh called %d times, want 0", provider.refreshCalls)
	}
}

func TestBuildSessionRefreshesExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	provider := &fakeProvider{
		// Refresh response without a refresh token; the old one must be kept.
		refreshToken: &oauth2.Token{
			AccessToken: "fresh",
			Expiry:      time.Now().Add(time.Hour),
		},
	}
	creds := &fakeCredRepo{cred: &domain.Credential{
		UserID:       1,
		AccessToken:  "stale",
		RefreshToken: "rt",
		Expiry:       &past,
		Scopes:       []string{"mail.read"},
	}}
	svc := NewOAuthService(provider, newFakeStateStore(), creds)

	_, err := svc.BuildSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("BuildSession() error = %v", err)
	}
	if provider.refreshCalls != 1 {
		t.Errorf("Refresh called %d times, want 1", provider.refreshCalls)
	}
	if creds.saveCalls != 1 {
		t.Fatalf("Save called %d times, want 1", creds.saveCalls)
	}
	if creds.saved.AccessToken != "fresh" {
		t.Errorf("saved access token = %q, want fresh", creds.saved.AccessToken)
	}
	if creds.saved.RefreshToken != "rt" {
		t.Errorf("saved refresh token = %q, want the original rt", creds.saved.RefreshToken)
	}
}

func TestBuildSessionExpiredNotRefreshable(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	provider := &fakeProvider{}
	creds := &fakeCredRepo{cred: &domain.Credential{
		UserID:      1,
		AccessToken: "stale",
		Expiry:      &past,
	}}
	svc := NewOAuthService(provider, newFakeStateStore(), creds)

	_, err := svc.BuildSession(context.Background(), 1)
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("BuildSession() error = %v, want ErrNoSession", err)
	}
	if provider.refreshCalls != 0 {
		t.Errorf("Refresh called %d times, want 0", provider.refreshCalls)
	}
}

func TestBuildSessionGrantRevoked(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	provider := &fakeProvider{
		refreshErr: errors.New(`oauth2: "invalid_grant" token has been revoked`),
	}
	creds := &fakeCredRepo{cred: &domain.Credential{
		UserID:       1,
		AccessToken:  "stale",
		RefreshToken: "rt",
		Expiry:       &past,
	}}
	svc := NewOAuthService(provider, newFakeStateStore(), creds)

	_, err := svc.BuildSession(context.Background(), 1)
	if !errors.Is(err, ErrReauthRequired) {
		t.Errorf("BuildSession() error = %v, want ErrReauthRequired", err)
	}
}

func TestBuildSessionVerificationFails(t *testing.T) {
	future := time.Now().Add(time.Hour)
	provider := &fakeProvider{sessionErr: errors.New("profile call failed")}
	creds := &fakeCredRepo{cred: &domain.Credential{
		UserID:      1,
		AccessToken: "at",
		Expiry:      &future,
	}}
	svc := NewOAuthService(provider, newFakeStateStore(), creds)

	_, err := svc.BuildSession(context.Background(), 1)
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("BuildSession() error = %v, want ErrNoSession", err)
	}
}

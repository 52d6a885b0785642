package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"mailtriage/adapter/out/persistence"
	"mailtriage/core/domain"
	"mailtriage/core/port/out"
	"mailtriage/core/service/auth"

	"golang.org/x/oauth2"
)

type fakeUsers struct {
	upsertErr error
}

func (f *fakeUsers) Upsert(ctx context.Context, email string, externalID *string) (int64, error) {
	return 1, f.upsertErr
}

type fakeEmails struct {
	existing  map[string]bool
	stored    []*domain.Email
	upsertErr error
}

func (f *fakeEmails) Exists(ctx context.Context, externalID string) bool {
	return f.existing[externalID]
}

func (f *fakeEmails) Upsert(ctx context.Context, email *domain.Email) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.stored = append(f.stored, email)
	return int64(len(f.stored)), nil
}

func (f *fakeEmails) Count(ctx context.Context) int64 { return int64(len(f.stored)) }

func (f *fakeEmails) ListRecent(ctx context.Context, limit int) []*domain.Email {
	return f.stored
}

type fakeLocker struct {
	err      error
	released bool
	calls    *[]string
}

func (f *fakeLocker) Acquire(ctx context.Context, userID int64) (func(), error) {
	if f.calls != nil {
		*f.calls = append(*f.calls, "lock")
	}
	if f.err != nil {
		return nil, f.err
	}
	return func() { f.released = true }, nil
}

type fakeClassifier struct{}

func (f *fakeClassifier) Classify(ctx context.Context, subject, body string) []domain.Label {
	return []domain.Label{domain.LabelGeneral}
}

type fakeSession struct {
	ids      []string
	fetchErr map[string]error
	notFound map[string]bool
}

func (f *fakeSession) AccountEmail() string { return "user@example.com" }
func (f *fakeSession) AccountID() string    { return "user@example.com" }

func (f *fakeSession) ListMessages(ctx context.Context, max int64, query string) []string {
	return f.ids
}

func (f *fakeSession) FetchMessage(ctx context.Context, id string) (*out.MailMessage, error) {
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	if f.notFound[id] {
		return nil, nil
	}
	return &out.MailMessage{
		ID:         id,
		Sender:     "sender@example.com",
		Subject:    "subject " + id,
		Body:       "body",
		ReceivedAt: time.Now(),
	}, nil
}

type fakeProvider struct {
	session    out.MailSession
	sessionErr error
	calls      *[]string
}

func (f *fakeProvider) AuthCodeURL(state string) string { return "https://example.com?state=" + state }
func (f *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return nil, errors.New("not used")
}
func (f *fakeProvider) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	return nil, errors.New("not used")
}
func (f *fakeProvider) NewSession(ctx context.Context, token *oauth2.Token) (out.MailSession, error) {
	if f.calls != nil {
		*f.calls = append(*f.calls, "session")
	}
	return f.session, f.sessionErr
}

type fakeStateStore struct{}

func (f *fakeStateStore) Store(ctx context.Context, state string, ttl time.Duration) error {
	return nil
}
func (f *fakeStateStore) Consume(ctx context.Context, state string) error { return nil }

type fakeCredRepo struct {
	cred    *domain.Credential
	loadErr error
}

func (f *fakeCredRepo) Save(ctx context.Context, cred *domain.Credential) error { return nil }
func (f *fakeCredRepo) Load(ctx context.Context, userID int64) (*domain.Credential, error) {
	return f.cred, f.loadErr
}

func validCredential() *domain.Credential {
	future := time.Now().Add(time.Hour)
	return &domain.Credential{UserID: 1, AccessToken: "at", Expiry: &future}
}

func newTestService(session out.MailSession, emails *fakeEmails, locker *fakeLocker) *Service {
	authSvc := auth.NewOAuthService(
		&fakeProvider{session: session},
		&fakeStateStore{},
		&fakeCredRepo{cred: validCredential()},
	)
	svc := NewService(&fakeUsers{}, emails, locker, authSvc, &fakeClassifier{})
	svc.pause = 0
	return svc
}

func TestRunBatchCountsOutcomes(t *testing.T) {
	session := &fakeSession{
		ids:      []string{"seen", "broken", "fresh"},
		fetchErr: map[string]error{"broken": errors.New("fetch failed")},
	}
	emails := &fakeEmails{existing: map[string]bool{"seen": true}}
	locker := &fakeLocker{}
	svc := newTestService(session, emails, locker)

	summary, err := svc.RunBatch(context.Background(), "user@example.com", 10, "")
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary.Processed != 1 || summary.Skipped != 1 || summary.Errors != 1 {
		t.Errorf("summary = %+v, want processed=1 skipped=1 errors=1", summary)
	}
	if len(emails.stored) != 1 {
		t.Fatalf("stored %d emails, want 1", len(emails.stored))
	}
	if emails.stored[0].ExternalID != "fresh" {
		t.Errorf("stored external id = %q, want fresh", emails.stored[0].ExternalID)
	}
	if !locker.released {
		t.Error("lock not released after batch")
	}
}

func TestRunBatchNilMessageCountsAsError(t *testing.T) {
	session := &fakeSession{
		ids:      []string{"gone"},
		notFound: map[string]bool{"gone": true},
	}
	emails := &fakeEmails{existing: map[string]bool{}}
	svc := newTestService(session, emails, &fakeLocker{})

	summary, err := svc.RunBatch(context.Background(), "user@example.com", 10, "")
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary.Errors != 1 || summary.Processed != 0 {
		t.Errorf("summary = %+v, want errors=1 processed=0", summary)
	}
}

func TestRunBatchLockBusy(t *testing.T) {
	session := &fakeSession{ids: []string{"m1"}}
	emails := &fakeEmails{existing: map[string]bool{}}
	locker := &fakeLocker{err: persistence.ErrLockBusy}
	svc := newTestService(session, emails, locker)

	summary, err := svc.RunBatch(context.Background(), "user@example.com", 10, "")
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("RunBatch() error = %v, want ErrSyncInProgress", err)
	}
	if summary.Processed != 0 || summary.Skipped != 0 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want all zero", summary)
	}
}

func TestRunBatchAcquiresLockBeforeSession(t *testing.T) {
	var calls []string
	session := &fakeSession{ids: []string{"m1"}}
	authSvc := auth.NewOAuthService(
		&fakeProvider{session: session, calls: &calls},
		&fakeStateStore{},
		&fakeCredRepo{cred: validCredential()},
	)
	emails := &fakeEmails{existing: map[string]bool{}}
	svc := NewService(&fakeUsers{}, emails, &fakeLocker{calls: &calls}, authSvc, &fakeClassifier{})
	svc.pause = 0

	if _, err := svc.RunBatch(context.Background(), "user@example.com", 10, ""); err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(calls) != 2 || calls[0] != "lock" || calls[1] != "session" {
		t.Errorf("call order = %v, want [lock session]", calls)
	}
}

func TestRunBatchNoSession(t *testing.T) {
	authSvc := auth.NewOAuthService(
		&fakeProvider{},
		&fakeStateStore{},
		&fakeCredRepo{loadErr: errors.New("not found")},
	)
	emails := &fakeEmails{existing: map[string]bool{}}
	svc := NewService(&fakeUsers{}, emails, &fakeLocker{}, authSvc, &fakeClassifier{})
	svc.pause = 0

	summary, err := svc.RunBatch(context.Background(), "user@example.com", 10, "")
	if !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("RunBatch() error = %v, want auth.ErrNoSession", err)
	}
	if summary.Processed != 0 {
		t.Errorf("summary = %+v, want zero", summary)
	}
}

func TestRunBatchStoreFailure(t *testing.T) {
	session := &fakeSession{ids: []string{"m1"}}
	emails := &fakeEmails{
		existing:  map[string]bool{},
		upsertErr: errors.New("connection reset"),
	}
	svc := newTestService(session, emails, &fakeLocker{})

	summary, err := svc.RunBatch(context.Background(), "user@example.com", 10, "")
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary.Errors != 1 || summary.Processed != 0 {
		t.Errorf("summary = %+v, want errors=1", summary)
	}
}

func TestRunBatchCancelledContext(t *testing.T) {
	session := &fakeSession{ids: []string{"m1", "m2"}}
	emails := &fakeEmails{existing: map[string]bool{}}
	svc := newTestService(session, emails, &fakeLocker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunBatch(ctx, "user@example.com", 10, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunBatch() error = %v, want context.Canceled", err)
	}
}

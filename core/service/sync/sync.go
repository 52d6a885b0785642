// Package sync orchestrates batch ingestion of mailbox messages.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailtriage/adapter/out/persistence"
	"mailtriage/core/domain"
	"mailtriage/core/port/out"
	"mailtriage/core/service/auth"
	"mailtriage/pkg/logger"
)

// ErrSyncInProgress means another batch already holds the user's lock.
var ErrSyncInProgress = errors.New("sync already in progress for user")

// defaultPause spaces out per-message work to stay inside provider and
// LLM rate limits.
const defaultPause = 100 * time.Millisecond

// Summary reports the outcome of one batch.
type Summary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Service runs sync batches: list, dedupe, fetch, classify, store.
type Service struct {
	users      out.UserRepository
	emails     out.EmailRepository
	locker     out.BatchLocker
	auth       *auth.OAuthService
	classifier out.Classifier
	pause      time.Duration
}

// NewService creates a new sync service.
func NewService(
	users out.UserRepository,
	emails out.EmailRepository,
	locker out.BatchLocker,
	authSvc *auth.OAuthService,
	classifier out.Classifier,
) *Service {
	return &Service{
		users:      users,
		emails:     emails,
		locker:     locker,
		auth:       authSvc,
		classifier: classifier,
		pause:      defaultPause,
	}
}

// RunBatch ingests up to maxEmails messages for the given account. A batch
// stops before any message work when no session can be built or another
// batch holds the user's lock; per-message failures only bump counters.
func (s *Service) RunBatch(ctx context.Context, userEmail string, maxEmails int64, query string) (*Summary, error) {
	summary := &Summary{}

	userID, err := s.users.Upsert(ctx, userEmail, nil)
	if err != nil {
		return summary, fmt.Errorf("failed to upsert user: %w", err)
	}

	// The lock must be held before the session is built: refreshing an
	// expired grant persists a new credential, and two concurrent batches
	// would race on that write.
	release, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrLockBusy) {
			return summary, ErrSyncInProgress
		}
		return summary, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer release()

	session, err := s.auth.BuildSession(ctx, userID)
	if err != nil {
		return summary, err
	}

	start := time.Now()
	ids := session.ListMessages(ctx, maxEmails, query)
	logger.Info("Sync batch for %s: %d messages listed", userEmail, len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		if s.emails.Exists(ctx, id) {
			summary.Skipped++
			continue
		}

		msg, err := session.FetchMessage(ctx, id)
		if err != nil || msg == nil {
			if err != nil {
				logger.WithError(err).Warn("Failed to fetch message %s", id)
			}
			summary.Errors++
			continue
		}

		labels := s.classifier.Classify(ctx, msg.Subject, msg.Body)

		email := &domain.Email{
			ExternalID: msg.ID,
			Sender:     msg.Sender,
			Subject:    msg.Subject,
			Body:       msg.Body,
			ReceivedAt: msg.ReceivedAt,
			Labels:     labels,
			UserID:     userID,
		}

		if _, err := s.emails.Upsert(ctx, email); err != nil {
			logger.WithError(err).Warn("Failed to store message %s", id)
			summary.Errors++
			continue
		}

		summary.Processed++
		if s.pause > 0 {
			time.Sleep(s.pause)
		}
	}

	logger.WithDuration(time.Since(start)).Info("Sync batch for %s done: processed=%d skipped=%d errors=%d",
		userEmail, summary.Processed, summary.Skipped, summary.Errors)
	return summary, nil
}

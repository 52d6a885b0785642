// Package out defines outbound ports implemented by adapters.
package out

import (
	"context"

	"mailtriage/core/domain"
)

// UserRepository persists local account records.
type UserRepository interface {
	// Upsert inserts a user or, on email conflict, updates the external id.
	// Returns the stable integer identifier either way.
	Upsert(ctx context.Context, email string, externalID *string) (int64, error)
}

// CredentialRepository persists OAuth token material, one record per user.
type CredentialRepository interface {
	// Save overwrites the user's credential in a single statement.
	Save(ctx context.Context, cred *domain.Credential) error
	// Load returns the stored credential, or persistence.ErrNotFound when
	// the user has never completed OAuth.
	Load(ctx context.Context, userID int64) (*domain.Credential, error)
}

// EmailRepository persists categorized emails keyed by the provider's
// message id.
type EmailRepository interface {
	// Exists reports whether a message id has already been ingested.
	// Degrades to false on store errors: callers only use it to skip work.
	Exists(ctx context.Context, externalID string) bool
	// Upsert writes the record, overwriting all fields on external_id
	// conflict, and returns the row id.
	Upsert(ctx context.Context, email *domain.Email) (int64, error)
	// Count returns the total number of stored emails, 0 on error.
	Count(ctx context.Context) int64
	// ListRecent returns up to limit emails, newest received_at first,
	// empty on error.
	ListRecent(ctx context.Context, limit int) []*domain.Email
}

// BatchLocker serializes sync batches per user so two concurrent batches
// cannot race on credential and email writes.
type BatchLocker interface {
	// Acquire takes a per-user lock, returning a release func, or
	// ErrLockBusy when another batch holds it.
	Acquire(ctx context.Context, userID int64) (release func(), err error)
}

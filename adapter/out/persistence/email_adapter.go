package persistence

import (
	"context"
	"time"

	"mailtriage/core/domain"
	"mailtriage/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// EmailAdapter implements out.EmailRepository using PostgreSQL.
type EmailAdapter struct {
	db *sqlx.DB
}

// NewEmailAdapter creates a new EmailAdapter.
func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

const emailSelectColumns = `
	id, external_id, sender, subject, body, received_at, labels, user_id`

// emailRow represents the database row for emails.
type emailRow struct {
	ID         int64          `db:"id"`
	ExternalID string         `db:"external_id"`
	Sender     string         `db:"sender"`
	Subject    string         `db:"subject"`
	Body       string         `db:"body"`
	ReceivedAt time.Time      `db:"received_at"`
	Labels     pq.StringArray `db:"labels"`
	UserID     int64          `db:"user_id"`
}

func (r *emailRow) toDomain() *domain.Email {
	return &domain.Email{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		Sender:     r.Sender,
		Subject:    r.Subject,
		Body:       r.Body,
		ReceivedAt: r.ReceivedAt,
		Labels:     domain.LabelsFromStrings([]string(r.Labels)),
		UserID:     r.UserID,
	}
}

// Exists reports whether a message id has already been ingested. Store
// errors degrade to false so a flaky read never drops a message.
func (a *EmailAdapter) Exists(ctx context.Context, externalID string) bool {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM emails WHERE external_id = $1)`
	if err := a.db.GetContext(ctx, &exists, query, externalID); err != nil {
		logger.WithError(err).Warn("Email existence check failed for %s", externalID)
		return false
	}
	return exists
}

// Upsert writes the record, overwriting all mutable fields on external_id
// conflict, and returns the row id.
func (a *EmailAdapter) Upsert(ctx context.Context, email *domain.Email) (int64, error) {
	query := `
		INSERT INTO emails (external_id, sender, subject, body, received_at, labels, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE
		SET sender = EXCLUDED.sender,
		    subject = EXCLUDED.subject,
		    body = EXCLUDED.body,
		    received_at = EXCLUDED.received_at,
		    labels = EXCLUDED.labels,
		    user_id = EXCLUDED.user_id,
		    updated_at = NOW()
		RETURNING id`

	var id int64
	err := a.db.QueryRowContext(ctx, query,
		email.ExternalID,
		email.Sender,
		email.Subject,
		email.Body,
		email.ReceivedAt,
		pq.StringArray(domain.LabelStrings(email.Labels)),
		email.UserID,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Count returns the total number of stored emails, 0 on error.
func (a *EmailAdapter) Count(ctx context.Context) int64 {
	var count int64
	if err := a.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM emails`); err != nil {
		logger.WithError(err).Warn("Email count failed")
		return 0
	}
	return count
}

// ListRecent returns up to limit emails, newest first, empty on error.
func (a *EmailAdapter) ListRecent(ctx context.Context, limit int) []*domain.Email {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + emailSelectColumns + `
		FROM emails
		ORDER BY received_at DESC
		LIMIT $1`

	var rows []emailRow
	if err := a.db.SelectContext(ctx, &rows, query, limit); err != nil {
		logger.WithError(err).Warn("Recent email listing failed")
		return []*domain.Email{}
	}

	emails := make([]*domain.Email, 0, len(rows))
	for i := range rows {
		emails = append(emails, rows[i].toDomain())
	}
	return emails
}

// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// UserAdapter implements out.UserRepository using PostgreSQL.
type UserAdapter struct {
	db *sqlx.DB
}

// NewUserAdapter creates a new UserAdapter.
func NewUserAdapter(db *sqlx.DB) *UserAdapter {
	return &UserAdapter{db: db}
}

// Upsert inserts a user keyed by email and returns the row id. On conflict
// the external id is only overwritten when the new value is non-null, so a
// sync run without an identity session never erases a linked account.
func (a *UserAdapter) Upsert(ctx context.Context, email string, externalID *string) (int64, error) {
	query := `
		INSERT INTO users (email, external_id)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE
		SET external_id = COALESCE(EXCLUDED.external_id, users.external_id),
		    updated_at = NOW()
		RETURNING id`

	var id int64
	var ext sql.NullString
	if externalID != nil {
		ext = sql.NullString{String: *externalID, Valid: true}
	}
	if err := a.db.QueryRowContext(ctx, query, email, ext).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

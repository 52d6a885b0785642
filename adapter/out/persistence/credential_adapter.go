package persistence

import (
	"context"
	"database/sql"
	"errors"

	"mailtriage/core/domain"
	"mailtriage/pkg/crypto"
	"mailtriage/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CredentialAdapter implements out.CredentialRepository using PostgreSQL.
// When an encryptor is provided, tokens are encrypted at rest.
type CredentialAdapter struct {
	db  *sqlx.DB
	enc *crypto.Encryptor
}

// NewCredentialAdapter creates a new CredentialAdapter. enc may be nil, in
// which case tokens are stored in plaintext.
func NewCredentialAdapter(db *sqlx.DB, enc *crypto.Encryptor) *CredentialAdapter {
	if enc == nil {
		logger.Warn("Token encryption disabled: no encryption key configured")
	}
	return &CredentialAdapter{db: db, enc: enc}
}

func (a *CredentialAdapter) encryptToken(token string) string {
	if a.enc == nil || token == "" {
		return token
	}
	encrypted, err := a.enc.Encrypt(token)
	if err != nil {
		logger.Warn("Failed to encrypt token: %v", err)
		return token
	}
	return encrypted
}

func (a *CredentialAdapter) decryptToken(token string) string {
	if a.enc == nil || token == "" || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := a.enc.Decrypt(token)
	if err != nil {
		// Token might predate encryption, return as-is
		return token
	}
	return decrypted
}

type credentialRow struct {
	UserID       int64          `db:"user_id"`
	AccessToken  string         `db:"access_token"`
	RefreshToken sql.NullString `db:"refresh_token"`
	Expiry       sql.NullTime   `db:"token_expiry"`
	Scopes       pq.StringArray `db:"scopes"`
}

// Save overwrites the user's credential in a single upsert.
func (a *CredentialAdapter) Save(ctx context.Context, cred *domain.Credential) error {
	query := `
		INSERT INTO user_credentials (user_id, access_token, refresh_token, token_expiry, scopes, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    token_expiry = EXCLUDED.token_expiry,
		    scopes = EXCLUDED.scopes,
		    updated_at = NOW()`

	var refresh sql.NullString
	if cred.RefreshToken != "" {
		refresh = sql.NullString{String: a.encryptToken(cred.RefreshToken), Valid: true}
	}
	var expiry sql.NullTime
	if cred.Expiry != nil {
		expiry = sql.NullTime{Time: cred.Expiry.UTC(), Valid: true}
	}

	_, err := a.db.ExecContext(ctx, query,
		cred.UserID,
		a.encryptToken(cred.AccessToken),
		refresh,
		expiry,
		pq.StringArray(cred.Scopes),
	)
	return err
}

// Load returns the stored credential, or ErrNotFound when the user never
// completed OAuth.
func (a *CredentialAdapter) Load(ctx context.Context, userID int64) (*domain.Credential, error) {
	query := `
		SELECT user_id, access_token, refresh_token, token_expiry, scopes
		FROM user_credentials
		WHERE user_id = $1`

	var row credentialRow
	if err := a.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	cred := &domain.Credential{
		UserID:      row.UserID,
		AccessToken: a.decryptToken(row.AccessToken),
		Scopes:      []string(row.Scopes),
	}
	if row.RefreshToken.Valid {
		cred.RefreshToken = a.decryptToken(row.RefreshToken.String)
	}
	if row.Expiry.Valid {
		expiry := row.Expiry.Time.UTC()
		cred.Expiry = &expiry
	}
	return cred, nil
}

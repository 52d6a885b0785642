package domain

import "time"

// Credential is the OAuth token material stored for one user's mailbox.
// Exactly one credential exists per user; saving a new one overwrites the
// prior value entirely.
type Credential struct {
	UserID       int64      `json:"user_id"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	Scopes       []string   `json:"scopes"`
}

// Expired reports whether the access token's expiry has passed. A credential
// without an expiry is treated as still valid; the session verification call
// catches revoked grants that expiry alone misses.
func (c *Credential) Expired(now time.Time) bool {
	if c.Expiry == nil {
		return false
	}
	return !c.Expiry.After(now)
}

// Refreshable reports whether a refresh attempt is possible at all.
func (c *Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

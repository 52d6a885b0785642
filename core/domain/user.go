package domain

// User is the local account record an ingested mailbox belongs to.
// ExternalID holds the identity provider's account id once signup or
// login completes; it is nil for users created by a mailbox sync alone.
type User struct {
	ID         int64   `json:"id"`
	Email      string  `json:"email"`
	ExternalID *string `json:"external_id,omitempty"`
}

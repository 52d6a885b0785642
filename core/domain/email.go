package domain

import "time"

// Email is one ingested, categorized message. ExternalID is the mail
// provider's message id and uniquely identifies the row: re-ingesting the
// same message overwrites every field (last write wins).
type Email struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
	Labels     []Label   `json:"labels"`
	UserID     int64     `json:"user_id"`
}

package out

import (
	"context"
	"time"
)

// StateStore holds OAuth state tokens between the authorization redirect
// and the provider callback. Nothing else survives between those two HTTP
// requests, so the token is the only anti-forgery anchor.
type StateStore interface {
	// Store saves a state token with a TTL.
	Store(ctx context.Context, state string, ttl time.Duration) error
	// Consume validates a state token and deletes it atomically so it can
	// be used exactly once. Returns an error for unknown or expired tokens.
	Consume(ctx context.Context, state string) error
}

package out

import (
	"context"

	"mailtriage/core/domain"
)

// ChatCompleter is the inference collaborator: text in, text out.
type ChatCompleter interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Classifier maps an email's text onto the closed label set. It never
// fails outward: transport and parsing errors collapse to the default
// label so classification can never block ingestion.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) []domain.Label
}

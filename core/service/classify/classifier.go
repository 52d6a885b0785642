// Package classify maps email text onto the fixed label set with an LLM.
package classify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mailtriage/core/domain"
	"mailtriage/core/port/out"
	"mailtriage/pkg/logger"
)

// maxBodyChars bounds the prompt size; classification only needs the
// opening of the message.
const maxBodyChars = 2000

// Service implements out.Classifier on a chat completion backend. It
// never fails outward: any transport or parsing problem collapses to the
// default label so a flaky LLM cannot block ingestion.
type Service struct {
	completer out.ChatCompleter
}

// NewService creates a new classification service.
func NewService(completer out.ChatCompleter) *Service {
	return &Service{completer: completer}
}

// Classify returns the labels for an email, always at least one.
func (s *Service) Classify(ctx context.Context, subject, body string) []domain.Label {
	if len(body) > maxBodyChars {
		// Back off to a rune boundary so the cut never leaves a broken
		// UTF-8 sequence in the prompt.
		cut := maxBodyChars
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}

	systemPrompt := buildSystemPrompt()
	userPrompt := fmt.Sprintf("Subject: %s\n\nBody: %s", subject, body)

	reply, err := s.completer.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		logger.WithError(err).Warn("Classification request failed, using default label")
		return []domain.Label{domain.DefaultLabel}
	}

	return domain.ParseLabels(reply)
}

func buildSystemPrompt() string {
	names := make([]string, len(domain.AllLabels))
	for i, l := range domain.AllLabels {
		names[i] = string(l)
	}
	return fmt.Sprintf(
		"You are an email classification assistant. Classify the email into one or more of "+
			"these categories: %s. Respond with only the category names, separated by commas. "+
			"Do not explain.",
		strings.Join(names, ", "))
}

var _ out.Classifier = (*Service)(nil)

package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"mailtriage/core/port/out"

	"google.golang.org/api/gmail/v1"
)

// Sentinel bodies stored when a message has no usable text/plain part.
const (
	noPlainTextBody  = "[No plain text body found]"
	decodeFailedBody = "Failed to decode email body"
)

// Header fallbacks for malformed messages.
const (
	defaultSubject = "No Subject"
	defaultSender  = "Unknown"
)

func parseMessage(msg *gmail.Message) *out.MailMessage {
	m := &out.MailMessage{
		ID:      msg.Id,
		Sender:  defaultSender,
		Subject: defaultSubject,
		Body:    noPlainTextBody,
	}

	if msg.Payload == nil {
		m.ReceivedAt = time.Now().UTC()
		return m
	}

	if v := headerValue(msg.Payload.Headers, "Subject"); v != "" {
		m.Subject = v
	}
	if v := headerValue(msg.Payload.Headers, "From"); v != "" {
		m.Sender = v
	}
	m.ReceivedAt = parseDate(headerValue(msg.Payload.Headers, "Date"))

	if body, ok := extractPlainText(msg.Payload); ok {
		m.Body = body
	}

	return m
}

// headerValue looks up a header by name, case-insensitively. Gmail
// normally capitalizes headers but forwarding gateways do not always.
func headerValue(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseDate parses an RFC 5322 date header, falling back to the current
// time when the header is missing or malformed.
func parseDate(value string) time.Time {
	if value != "" {
		if t, err := mail.ParseDate(value); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// extractPlainText walks the MIME tree depth-first and returns the first
// text/plain part. Multipart containers are descended into; HTML-only
// messages yield no result.
func extractPlainText(part *gmail.MessagePart) (string, bool) {
	if part == nil {
		return "", false
	}

	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data), true
	}

	for _, child := range part.Parts {
		if body, ok := extractPlainText(child); ok {
			return body, true
		}
	}

	return "", false
}

// decodeBody decodes Gmail's base64url body data. Gmail pads its output,
// but relayed messages occasionally arrive unpadded.
func decodeBody(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return decodeFailedBody
}

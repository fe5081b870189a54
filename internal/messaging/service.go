// Package messaging provides the outbound delivery adapter: a pluggable
// Transport per platform, the bool-returning Delivery wrapper used by the
// router, and the text formatters for structured replies.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// Transport is one physical delivery channel (Cloud API, Twilio, whatsmeow).
type Transport interface {
	// Name identifies the transport in logs and the status endpoint.
	Name() string

	// SendText sends a plain text message.
	SendText(ctx context.Context, to, body string) error

	// SendDocument sends a document by URL with a filename and caption.
	SendDocument(ctx context.Context, to, url, filename, caption string) error

	// SendTemplate sends a pre-approved template message.
	SendTemplate(ctx context.Context, to, name, languageCode string) error
}

// ErrInvalidRecipient is returned when a recipient has no usable digits.
var ErrInvalidRecipient = errors.New("invalid recipient")

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// MinRecipientDigits is the shortest phone number accepted.
const MinRecipientDigits = 6

// CanonicalizeRecipient strips everything but digits from a phone number
// ("+54 9 11 1234-5678" -> "5491112345678").
func CanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("%w: recipient cannot be empty", ErrInvalidRecipient)
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("%w: no digits found in %q", ErrInvalidRecipient, recipient)
	}
	if len(canonical) < MinRecipientDigits {
		return "", fmt.Errorf("%w: %q is too short (minimum %d digits required)", ErrInvalidRecipient, canonical, MinRecipientDigits)
	}
	if canonical != recipient {
		slog.Debug("CanonicalizeRecipient: recipient canonicalized", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

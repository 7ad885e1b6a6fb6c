package messaging

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// Service defines a pluggable message delivery abstraction.
// It supports sending messages and menus, and provides channels for
// receipt and response events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails. This allows each service to implement its own
	// recipient validation rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMenu sends a message followed by a fixed set of choices the
	// recipient is expected to answer with verbatim.
	SendMenu(ctx context.Context, to string, body string, choices []string) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming participant responses.
	Responses() <-chan models.Response
}

// Constants for channel plumbing shared by the service implementations.
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by send operations after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// canonicalizeRecipient reduces a recipient identifier to its digits.
// Both transports address recipients by bare phone digits, so the rule
// lives here rather than per service.
func canonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid recipient: no digits found in " + recipient)
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid recipient: " + canonical + " is too short (minimum 6 digits required)")
	}
	return canonical, nil
}

// renderMenu flattens a body plus choices into one text message for
// transports without native reply keyboards. Each choice is a line the
// recipient copies back verbatim.
func renderMenu(body string, choices []string) string {
	if len(choices) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\nВарианты ответа:")
	for _, choice := range choices {
		b.WriteString("\n• ")
		b.WriteString(choice)
	}
	return b.String()
}

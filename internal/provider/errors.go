package provider

import (
	"errors"

	"github.com/ignite/email-tracker/internal/service/events"
)

var (
	// ErrUnknownProvider is returned for names that are not registered or
	// are disabled.
	ErrUnknownProvider = errors.New("provider: unknown or disabled provider")
	// ErrInvalidSignature is returned when a webhook fails verification.
	ErrInvalidSignature = errors.New("provider: invalid signature")
	// ErrUnsupportedEvent is returned by Normalize for provider events with no
	// canonical mapping.
	ErrUnsupportedEvent = errors.New("provider: unsupported event type")
	// ErrInvalidPayload is returned when the body can not be decoded.
	ErrInvalidPayload = errors.New("provider: invalid payload")
	// ErrDuplicateProvider is returned when a name is registered twice.
	ErrDuplicateProvider = errors.New("provider: already registered")
	// ErrMissingMessageID is returned when a tracked event carries no id.
	ErrMissingMessageID = events.ErrMissingMessageID
)

package sending

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
)

var (
	// ErrNoRecipient is returned when the message has no To address.
	ErrNoRecipient = errors.New("sending: message has no recipient")
	// ErrInvalidRecipient is returned when the To address does not parse.
	ErrInvalidRecipient = errors.New("sending: invalid recipient address")
	// ErrUnknownTransport is returned when no transport is registered for the provider.
	ErrUnknownTransport = errors.New("sending: no transport for provider")
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	KindRateExceeded       ErrorKind = "rate_exceeded"
	KindDailyQuotaExceeded ErrorKind = "daily_quota_exceeded"
	KindInvalidSender      ErrorKind = "invalid_sender"
	KindTemporaryFailure   ErrorKind = "temporary_failure"
	KindSendFailed         ErrorKind = "send_failed"
)

// Sentinels matched by errors.Is against a *TransportError of that kind.
var (
	ErrRateExceeded       = &kindError{KindRateExceeded}
	ErrDailyQuotaExceeded = &kindError{KindDailyQuotaExceeded}
	ErrInvalidSender      = &kindError{KindInvalidSender}
	ErrTemporaryFailure   = &kindError{KindTemporaryFailure}
	ErrSendFailed         = &kindError{KindSendFailed}
)

type kindError struct{ kind ErrorKind }

func (e *kindError) Error() string { return "sending: " + string(e.kind) }

// TransportError is a classified transport failure.
type TransportError struct {
	Kind     ErrorKind
	Provider domain.Provider
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sending via %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *TransportError) Is(target error) bool {
	k, ok := target.(*kindError)
	return ok && k.kind == e.Kind
}

// Retryable reports whether a later retry may succeed.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case KindRateExceeded, KindDailyQuotaExceeded, KindTemporaryFailure:
		return true
	}
	return false
}

// classifications maps provider error text onto kinds, first match wins.
var classifications = []struct {
	substr string
	kind   ErrorKind
}{
	{"454 Throttling failure: Maximum sending rate exceeded", KindRateExceeded},
	{"454 Throttling failure: Daily message quota exceeded", KindDailyQuotaExceeded},
	{"554 Message rejected: Email address is not verified", KindInvalidSender},
	{"451 Temporary service failure", KindTemporaryFailure},
}

// ClassifyTransportError wraps err in a *TransportError.
func ClassifyTransportError(provider domain.Provider, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	kind := KindSendFailed
	msg := err.Error()
	for _, c := range classifications {
		if strings.Contains(msg, c.substr) {
			kind = c.kind
			break
		}
	}
	return &TransportError{Kind: kind, Provider: provider, Err: err}
}

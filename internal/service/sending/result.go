package sending

import "github.com/ignite/email-tracker/internal/domain"

// Status is the outcome of a send.
type Status string

const (
	StatusSent              Status = "sent"
	StatusSuppressed        Status = "suppressed"
	StatusTooManyRecipients Status = "too_many_recipients"
)

// Result describes a send that did not fail with an error. Suppressed and
// TooManyRecipients sends perform no network I/O and create no rows.
type Result struct {
	Status    Status
	SentEmail *domain.SentEmail
	// Email and Reason are set for suppressed sends.
	Email  string
	Reason domain.SuppressionReason
}

// Sent reports whether the message was handed to the transport.
func (r Result) Sent() bool { return r.Status == StatusSent }

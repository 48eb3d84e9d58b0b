package domain

import "time"

// EventType is the canonical event vocabulary every provider payload folds into.
type EventType string

const (
	EventSent       EventType = "sent"
	EventDelivered  EventType = "delivered"
	EventBounced    EventType = "bounced"
	EventComplained EventType = "complained"
	EventOpened     EventType = "opened"
	EventClicked    EventType = "clicked"
	EventRejected   EventType = "rejected"
)

// IsNegative reports whether the event signals a delivery problem.
func (e EventType) IsNegative() bool {
	switch e {
	case EventBounced, EventComplained, EventRejected:
		return true
	}
	return false
}

// BounceType classifies a bounce.
type BounceType string

const (
	BouncePermanent    BounceType = "Permanent"
	BounceTransient    BounceType = "Transient"
	BounceUndetermined BounceType = "Undetermined"
)

// Label returns a human readable label.
func (b BounceType) Label() string {
	switch b {
	case BouncePermanent:
		return "Permanent (Hard Bounce)"
	case BounceTransient:
		return "Transient (Soft Bounce)"
	case BounceUndetermined:
		return "Undetermined"
	}
	return string(b)
}

// BlocksFutureSends reports whether this bounce type should suppress the address.
func (b BounceType) BlocksFutureSends() bool { return b == BouncePermanent }

// ParseBounceType maps a provider string onto a BounceType. Anything that is
// not recognisably transient or undetermined is treated as permanent.
func ParseBounceType(s string) BounceType {
	switch BounceType(s) {
	case BounceTransient:
		return BounceTransient
	case BounceUndetermined:
		return BounceUndetermined
	}
	return BouncePermanent
}

// ComplaintType classifies a feedback-loop complaint (RFC 5965 feedback types).
type ComplaintType string

const (
	ComplaintAbuse       ComplaintType = "abuse"
	ComplaintAuthFailure ComplaintType = "auth-failure"
	ComplaintFraud       ComplaintType = "fraud"
	ComplaintNotSpam     ComplaintType = "not-spam"
	ComplaintOther       ComplaintType = "other"
	ComplaintVirus       ComplaintType = "virus"
)

// BlocksFutureSends reports whether this complaint type is severe enough to
// suppress the address on its own.
func (c ComplaintType) BlocksFutureSends() bool {
	switch c {
	case ComplaintAbuse, ComplaintFraud, ComplaintVirus:
		return true
	}
	return false
}

// ParseComplaintType maps a provider feedback type onto a ComplaintType.
// Providers that only say "spam" (or nothing) report abuse.
func ParseComplaintType(s string) ComplaintType {
	switch ComplaintType(s) {
	case ComplaintAbuse, ComplaintAuthFailure, ComplaintFraud, ComplaintNotSpam, ComplaintOther, ComplaintVirus:
		return ComplaintType(s)
	}
	if s == "" || s == "spam" {
		return ComplaintAbuse
	}
	return ComplaintOther
}

// EmailEventData is the normalized form of a single provider notification.
type EmailEventData struct {
	MessageID     string                 `json:"message_id"`
	Email         string                 `json:"email"`
	Provider      Provider               `json:"provider"`
	EventType     EventType              `json:"event_type"`
	Timestamp     *time.Time             `json:"timestamp,omitempty"`
	BounceType    BounceType             `json:"bounce_type,omitempty"`
	ComplaintType ComplaintType          `json:"complaint_type,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// OccurredAt returns the provider timestamp, or fallback when the payload had none.
func (e EmailEventData) OccurredAt(fallback time.Time) time.Time {
	if e.Timestamp != nil && !e.Timestamp.IsZero() {
		return *e.Timestamp
	}
	return fallback
}

// TrackingCategory names the SentEmail flag gating an event.
type TrackingCategory string

const (
	CategoryBounce    TrackingCategory = "bounce"
	CategoryComplaint TrackingCategory = "complaint"
	CategoryDelivery  TrackingCategory = "delivery"
)

// Category returns the tracking category an event type is gated on, and false
// for event types the processor does not persist.
func (e EventType) Category() (TrackingCategory, bool) {
	switch e {
	case EventBounced, EventRejected:
		return CategoryBounce, true
	case EventComplained:
		return CategoryComplaint, true
	case EventDelivered:
		return CategoryDelivery, true
	}
	return "", false
}

package domain

import "time"

// NotificationType names a category of domain notification.
type NotificationType string

const (
	NotifySent         NotificationType = "sent"
	NotifyDelivered    NotificationType = "delivered"
	NotifyBounced      NotificationType = "bounced"
	NotifyComplained   NotificationType = "complained"
	NotifyOpened       NotificationType = "opened"
	NotifyClicked      NotificationType = "clicked"
	NotifyUnsubscribed NotificationType = "unsubscribed"
)

// Notification is published to subscribers after a state change. Only the
// fields relevant to Type are set.
type Notification struct {
	Type       NotificationType  `json:"type"`
	Provider   Provider          `json:"provider,omitempty"`
	MessageID  string            `json:"message_id,omitempty"`
	Email      string            `json:"email,omitempty"`
	SentEmail  *SentEmail        `json:"sent_email,omitempty"`
	Bounce     *EmailBounce      `json:"bounce,omitempty"`
	Complaint  *EmailComplaint   `json:"complaint,omitempty"`
	Open       *EmailOpen        `json:"open,omitempty"`
	Link       *EmailLink        `json:"link,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

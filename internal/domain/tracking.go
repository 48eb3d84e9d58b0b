package domain

import (
	"encoding/json"
	"time"
)

// SentEmail is the record created once per tracked send. MessageID is the
// correlation key every webhook event is matched on.
type SentEmail struct {
	ID                int64      `json:"id" db:"id"`
	Provider          Provider   `json:"provider" db:"provider"`
	MessageID         string     `json:"message_id" db:"message_id"`
	Email             string     `json:"email" db:"email"`
	BatchID           *int64     `json:"batch_id,omitempty" db:"batch_id"`
	SentAt            time.Time  `json:"sent_at" db:"sent_at"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	BounceTracking    bool       `json:"bounce_tracking" db:"bounce_tracking"`
	ComplaintTracking bool       `json:"complaint_tracking" db:"complaint_tracking"`
	DeliveryTracking  bool       `json:"delivery_tracking" db:"delivery_tracking"`
}

// Tracks reports whether the flag for the given category is set.
func (s *SentEmail) Tracks(c TrackingCategory) bool {
	switch c {
	case CategoryBounce:
		return s.BounceTracking
	case CategoryComplaint:
		return s.ComplaintTracking
	case CategoryDelivery:
		return s.DeliveryTracking
	}
	return false
}

// EmailBounce is an append-only bounce record.
type EmailBounce struct {
	ID          int64           `json:"id" db:"id"`
	SentEmailID int64           `json:"sent_email_id" db:"sent_email_id"`
	Provider    Provider        `json:"provider" db:"provider"`
	Type        BounceType      `json:"type" db:"type"`
	Email       string          `json:"email" db:"email"`
	BouncedAt   time.Time       `json:"bounced_at" db:"bounced_at"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}

// EmailComplaint is an append-only complaint record.
type EmailComplaint struct {
	ID           int64           `json:"id" db:"id"`
	SentEmailID  int64           `json:"sent_email_id" db:"sent_email_id"`
	Provider     Provider        `json:"provider" db:"provider"`
	Type         ComplaintType   `json:"type" db:"type"`
	Email        string          `json:"email" db:"email"`
	ComplainedAt time.Time       `json:"complained_at" db:"complained_at"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}

// EmailOpen tracks the first fetch of a beacon. OpenedAt is set once.
type EmailOpen struct {
	ID               int64      `json:"id" db:"id"`
	SentEmailID      int64      `json:"sent_email_id" db:"sent_email_id"`
	BeaconIdentifier string     `json:"beacon_identifier" db:"beacon_identifier"`
	OpenedAt         *time.Time `json:"opened_at,omitempty" db:"opened_at"`
}

// EmailLink is a rewritten anchor. ClickCount only ever grows.
type EmailLink struct {
	ID             int64  `json:"id" db:"id"`
	SentEmailID    int64  `json:"sent_email_id" db:"sent_email_id"`
	LinkIdentifier string `json:"link_identifier" db:"link_identifier"`
	OriginalURL    string `json:"original_url" db:"original_url"`
	Clicked        bool   `json:"clicked" db:"clicked"`
	ClickCount     int64  `json:"click_count" db:"click_count"`
}

// Batch groups sent emails for campaign reporting.
type Batch struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

package events

import (
	"context"
	"time"

	"github.com/ignite/email-tracker/internal/domain"
)

// Store is the persistence the processor needs.
type Store interface {
	// FindTracked returns the SentEmail with messageID whose tracking flag for
	// category is set, or domain.ErrNotFound.
	FindTracked(ctx context.Context, messageID string, category domain.TrackingCategory) (*domain.SentEmail, error)
	// CreateBounce appends a bounce row and sets its ID.
	CreateBounce(ctx context.Context, b *domain.EmailBounce) error
	// CreateComplaint appends a complaint row and sets its ID.
	CreateComplaint(ctx context.Context, c *domain.EmailComplaint) error
	// MarkDelivered sets delivered_at, overwriting any previous value.
	MarkDelivered(ctx context.Context, sentEmailID int64, at time.Time) error
}

// Publisher receives domain notifications after a successful state change.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification)
}

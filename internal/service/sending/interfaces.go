package sending

import (
	"context"

	"github.com/ignite/email-tracker/internal/domain"
)

// Transport delivers a message through one ESP. Implementations must be safe
// for concurrent use.
type Transport interface {
	// Name returns the provider the transport sends through.
	Name() domain.Provider
	// Send delivers msg and returns the id the provider assigned to it, or ""
	// when webhooks will echo the X-Message-ID header instead.
	Send(ctx context.Context, msg *domain.Message) (string, error)
}

// Store persists send records.
type Store interface {
	CreateSentEmail(ctx context.Context, s *domain.SentEmail) error
	// UpdateMessageID replaces the correlation key once the provider has
	// assigned its own id.
	UpdateMessageID(ctx context.Context, sentEmailID int64, messageID string) error
	FindOrCreateBatch(ctx context.Context, name string) (*domain.Batch, error)
}

// Suppressor reports why an address may not be sent to, "" meaning allowed.
type Suppressor interface {
	Reason(ctx context.Context, email string, provider domain.Provider) (domain.SuppressionReason, error)
}

// BodyRewriter injects open and click tracking into an HTML body.
type BodyRewriter interface {
	Rewrite(ctx context.Context, sent *domain.SentEmail, html string, opts domain.TrackingOptions) (string, error)
}

// UnsubscribeSigner produces signed unsubscribe URLs.
type UnsubscribeSigner interface {
	URL(email, messageID string) (string, error)
}

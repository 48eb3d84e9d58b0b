package suppression

import (
	"context"

	"github.com/ignite/email-tracker/internal/domain"
)

// Repository reads bounce and complaint history. An empty provider means all
// providers.
type Repository interface {
	// CountBounces counts bounce rows for email; permanentOnly restricts the
	// count to Permanent bounces.
	CountBounces(ctx context.Context, email string, provider domain.Provider, permanentOnly bool) (int, error)

	// CountComplaints counts complaint rows for email.
	CountComplaints(ctx context.Context, email string, provider domain.Provider) (int, error)
}

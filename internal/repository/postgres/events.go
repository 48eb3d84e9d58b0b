package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/email-tracker/internal/domain"
)

// CreateBounce appends a bounce row.
func (s *Store) CreateBounce(ctx context.Context, b *domain.EmailBounce) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO `+s.t.bounces+` (provider, sent_email_id, type, email, bounced_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, string(b.Provider), b.SentEmailID, string(b.Type), b.Email, b.BouncedAt, nullJSON(b.Metadata),
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("create bounce: %w", err)
	}
	return nil
}

// CreateComplaint appends a complaint row.
func (s *Store) CreateComplaint(ctx context.Context, c *domain.EmailComplaint) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO `+s.t.complaints+` (provider, sent_email_id, type, email, complained_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, string(c.Provider), c.SentEmailID, string(c.Type), c.Email, c.ComplainedAt, nullJSON(c.Metadata),
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// MarkDelivered sets delivered_at. Repeated deliveries overwrite it.
func (s *Store) MarkDelivered(ctx context.Context, sentEmailID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+s.t.sentEmails+` SET delivered_at = $2, updated_at = NOW() WHERE id = $1`,
		sentEmailID, at,
	)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/email-tracker/internal/domain"
)

const sentEmailColumns = `id, provider, message_id, email, batch_id, sent_at, delivered_at,
	bounce_tracking, complaint_tracking, delivery_tracking`

func scanSentEmail(row interface{ Scan(...interface{}) error }) (*domain.SentEmail, error) {
	var (
		s         domain.SentEmail
		provider  string
		batchID   sql.NullInt64
		sentAt    sql.NullTime
		delivered sql.NullTime
	)
	err := row.Scan(&s.ID, &provider, &s.MessageID, &s.Email, &batchID, &sentAt, &delivered,
		&s.BounceTracking, &s.ComplaintTracking, &s.DeliveryTracking)
	if err != nil {
		return nil, err
	}
	s.Provider = domain.Provider(provider)
	if batchID.Valid {
		s.BatchID = &batchID.Int64
	}
	if sentAt.Valid {
		s.SentAt = sentAt.Time
	}
	if delivered.Valid {
		s.DeliveredAt = &delivered.Time
	}
	return &s, nil
}

// CreateSentEmail inserts the send record and sets its ID.
func (s *Store) CreateSentEmail(ctx context.Context, e *domain.SentEmail) error {
	var batchID interface{}
	if e.BatchID != nil {
		batchID = *e.BatchID
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO `+s.t.sentEmails+` (provider, message_id, email, batch_id, sent_at,
			bounce_tracking, complaint_tracking, delivery_tracking, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id
	`, string(e.Provider), e.MessageID, e.Email, batchID, e.SentAt,
		e.BounceTracking, e.ComplaintTracking, e.DeliveryTracking,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("create sent email: %w", err)
	}
	return nil
}

// UpdateMessageID replaces the correlation key of a send record.
func (s *Store) UpdateMessageID(ctx context.Context, id int64, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+s.t.sentEmails+` SET message_id = $2, updated_at = NOW() WHERE id = $1`,
		id, messageID,
	)
	if err != nil {
		return fmt.Errorf("update message id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindSentEmail returns a send record by primary key.
func (s *Store) FindSentEmail(ctx context.Context, id int64) (*domain.SentEmail, error) {
	e, err := scanSentEmail(s.db.QueryRowContext(ctx,
		`SELECT `+sentEmailColumns+` FROM `+s.t.sentEmails+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find sent email: %w", err)
	}
	return e, nil
}

// FindByMessageID returns the latest send record with messageID.
func (s *Store) FindByMessageID(ctx context.Context, messageID string) (*domain.SentEmail, error) {
	e, err := scanSentEmail(s.db.QueryRowContext(ctx,
		`SELECT `+sentEmailColumns+` FROM `+s.t.sentEmails+` WHERE message_id = $1 ORDER BY id DESC LIMIT 1`,
		messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by message id: %w", err)
	}
	return e, nil
}

var trackingColumn = map[domain.TrackingCategory]string{
	domain.CategoryBounce:    "bounce_tracking",
	domain.CategoryComplaint: "complaint_tracking",
	domain.CategoryDelivery:  "delivery_tracking",
}

// FindTracked returns the send record with messageID whose flag for category
// is set.
func (s *Store) FindTracked(ctx context.Context, messageID string, category domain.TrackingCategory) (*domain.SentEmail, error) {
	col, ok := trackingColumn[category]
	if !ok {
		return nil, fmt.Errorf("unknown tracking category %q", category)
	}
	e, err := scanSentEmail(s.db.QueryRowContext(ctx,
		`SELECT `+sentEmailColumns+` FROM `+s.t.sentEmails+`
		WHERE message_id = $1 AND `+col+` = true ORDER BY id DESC LIMIT 1`,
		messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tracked email: %w", err)
	}
	return e, nil
}

// FindOrCreateBatch returns the batch named name, creating it on first use.
func (s *Store) FindOrCreateBatch(ctx context.Context, name string) (*domain.Batch, error) {
	b := &domain.Batch{Name: name}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO `+s.t.batches+` (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET updated_at = `+s.t.batches+`.updated_at
		RETURNING id
	`, name).Scan(&b.ID)
	if err != nil {
		return nil, fmt.Errorf("find or create batch: %w", err)
	}
	return b, nil
}

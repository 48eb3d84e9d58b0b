package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/email-tracker/internal/domain"
)

// CreateOpen inserts an unopened beacon row.
func (s *Store) CreateOpen(ctx context.Context, o *domain.EmailOpen) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO `+s.t.opens+` (sent_email_id, beacon_identifier) VALUES ($1, $2) RETURNING id`,
		o.SentEmailID, o.BeaconIdentifier,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("create open: %w", err)
	}
	return nil
}

// CreateLink inserts a rewritten link row.
func (s *Store) CreateLink(ctx context.Context, l *domain.EmailLink) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO `+s.t.links+` (sent_email_id, link_identifier, original_url, clicked, click_count)
		VALUES ($1, $2, $3, false, 0)
		RETURNING id
	`, l.SentEmailID, l.LinkIdentifier, l.OriginalURL).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// FindOpenByBeacon looks up a beacon row.
func (s *Store) FindOpenByBeacon(ctx context.Context, beacon string) (*domain.EmailOpen, error) {
	var (
		o        domain.EmailOpen
		openedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sent_email_id, beacon_identifier, opened_at FROM `+s.t.opens+` WHERE beacon_identifier = $1`,
		beacon,
	).Scan(&o.ID, &o.SentEmailID, &o.BeaconIdentifier, &openedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find open: %w", err)
	}
	if openedAt.Valid {
		o.OpenedAt = &openedAt.Time
	}
	return &o, nil
}

// MarkOpened sets opened_at if it is still unset and reports whether this
// call was the first open.
func (s *Store) MarkOpened(ctx context.Context, openID int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+s.t.opens+` SET opened_at = $2 WHERE id = $1 AND opened_at IS NULL`,
		openID, at,
	)
	if err != nil {
		return false, fmt.Errorf("mark opened: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark opened: %w", err)
	}
	return n == 1, nil
}

// FindLinkByIdentifier looks up a rewritten link.
func (s *Store) FindLinkByIdentifier(ctx context.Context, identifier string) (*domain.EmailLink, error) {
	var l domain.EmailLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sent_email_id, link_identifier, original_url, clicked, click_count
		FROM `+s.t.links+` WHERE link_identifier = $1
	`, identifier).Scan(&l.ID, &l.SentEmailID, &l.LinkIdentifier, &l.OriginalURL, &l.Clicked, &l.ClickCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}
	return &l, nil
}

// RecordClick marks the link clicked and increments its counter atomically,
// returning the new count.
func (s *Store) RecordClick(ctx context.Context, linkID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE `+s.t.links+` SET clicked = true, click_count = click_count + 1 WHERE id = $1 RETURNING click_count`,
		linkID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record click: %w", err)
	}
	return count, nil
}

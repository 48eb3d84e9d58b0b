package postgres

import (
	"context"
	"fmt"

	"github.com/ignite/email-tracker/internal/domain"
)

// CountBounces implements suppression.Repository.
func (s *Store) CountBounces(ctx context.Context, email string, provider domain.Provider, permanentOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM ` + s.t.bounces + ` WHERE LOWER(email) = LOWER($1)`
	args := []interface{}{email}
	if provider != "" {
		args = append(args, string(provider))
		q += fmt.Sprintf(" AND provider = $%d", len(args))
	}
	if permanentOnly {
		args = append(args, string(domain.BouncePermanent))
		q += fmt.Sprintf(" AND type = $%d", len(args))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bounces: %w", err)
	}
	return n, nil
}

// CountComplaints implements suppression.Repository.
func (s *Store) CountComplaints(ctx context.Context, email string, provider domain.Provider) (int, error) {
	q := `SELECT COUNT(*) FROM ` + s.t.complaints + ` WHERE LOWER(email) = LOWER($1)`
	args := []interface{}{email}
	if provider != "" {
		args = append(args, string(provider))
		q += fmt.Sprintf(" AND provider = $%d", len(args))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}

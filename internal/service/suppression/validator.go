package suppression

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
)

// Policy selects which history blocks an address.
type Policy struct {
	// SkipBounced blocks addresses with a Permanent bounce.
	SkipBounced bool
	// SkipComplained blocks addresses with any complaint.
	SkipComplained bool
}

// Enabled reports whether any check is switched on.
func (p Policy) Enabled() bool { return p.SkipBounced || p.SkipComplained }

// Validator checks addresses against their history. It is safe for concurrent use.
type Validator struct {
	repo   Repository
	policy Policy
}

// NewValidator creates a Validator.
func NewValidator(repo Repository, policy Policy) *Validator {
	return &Validator{repo: repo, policy: policy}
}

// Policy returns the configured policy.
func (v *Validator) Policy() Policy { return v.policy }

func normalize(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	return email, nil
}

// Reason returns why email is blocked, or "" when it may be sent to. Bounces
// are checked before complaints.
func (v *Validator) Reason(ctx context.Context, email string, provider domain.Provider) (domain.SuppressionReason, error) {
	if !v.policy.Enabled() {
		return "", nil
	}
	if v.policy.SkipBounced {
		has, err := v.HasPermanentBounce(ctx, email, provider)
		if err != nil {
			return "", err
		}
		if has {
			return domain.ReasonPermanentBounce, nil
		}
	}
	if v.policy.SkipComplained {
		has, err := v.HasComplaint(ctx, email, provider)
		if err != nil {
			return "", err
		}
		if has {
			return domain.ReasonComplaint, nil
		}
	}
	return "", nil
}

// ShouldBlock reports whether email is blocked by the policy.
func (v *Validator) ShouldBlock(ctx context.Context, email string, provider domain.Provider) (bool, error) {
	reason, err := v.Reason(ctx, email, provider)
	return reason != "", err
}

// Check returns a *SuppressedError when email is blocked.
func (v *Validator) Check(ctx context.Context, email string, provider domain.Provider) error {
	reason, err := v.Reason(ctx, email, provider)
	if err != nil {
		return err
	}
	if reason != "" {
		return &SuppressedError{Email: email, Reason: reason}
	}
	return nil
}

// BounceCount counts every bounce for email.
func (v *Validator) BounceCount(ctx context.Context, email string, provider domain.Provider) (int, error) {
	email, err := normalize(email)
	if err != nil {
		return 0, err
	}
	n, err := v.repo.CountBounces(ctx, email, provider, false)
	if err != nil {
		return 0, fmt.Errorf("count bounces: %w", err)
	}
	return n, nil
}

// ComplaintCount counts every complaint for email.
func (v *Validator) ComplaintCount(ctx context.Context, email string, provider domain.Provider) (int, error) {
	email, err := normalize(email)
	if err != nil {
		return 0, err
	}
	n, err := v.repo.CountComplaints(ctx, email, provider)
	if err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}

// HasPermanentBounce reports whether email has at least one Permanent bounce.
func (v *Validator) HasPermanentBounce(ctx context.Context, email string, provider domain.Provider) (bool, error) {
	email, err := normalize(email)
	if err != nil {
		return false, err
	}
	n, err := v.repo.CountBounces(ctx, email, provider, true)
	if err != nil {
		return false, fmt.Errorf("count permanent bounces: %w", err)
	}
	return n > 0, nil
}

// HasBounce reports whether email has bounced at all.
func (v *Validator) HasBounce(ctx context.Context, email string, provider domain.Provider) (bool, error) {
	n, err := v.BounceCount(ctx, email, provider)
	return n > 0, err
}

// HasComplaint reports whether email has any complaint.
func (v *Validator) HasComplaint(ctx context.Context, email string, provider domain.Provider) (bool, error) {
	n, err := v.ComplaintCount(ctx, email, provider)
	return n > 0, err
}

// FilterBlocked returns the addresses that are not blocked, in order.
func (v *Validator) FilterBlocked(ctx context.Context, emails []string, provider domain.Provider) ([]string, error) {
	allowed := make([]string, 0, len(emails))
	for _, email := range emails {
		blocked, err := v.ShouldBlock(ctx, email, provider)
		if err != nil {
			return nil, err
		}
		if !blocked {
			allowed = append(allowed, email)
		}
	}
	return allowed, nil
}

// Summary describes email's history for reporting.
func (v *Validator) Summary(ctx context.Context, email string, provider domain.Provider) (*domain.ValidationSummary, error) {
	s := &domain.ValidationSummary{Email: email, Provider: string(provider)}
	if s.Provider == "" {
		s.Provider = "all"
	}

	var err error
	if s.ShouldBlock, err = v.ShouldBlock(ctx, email, provider); err != nil {
		return nil, err
	}
	if s.BounceCount, err = v.BounceCount(ctx, email, provider); err != nil {
		return nil, err
	}
	if s.ComplaintCount, err = v.ComplaintCount(ctx, email, provider); err != nil {
		return nil, err
	}
	if s.HasPermanentBounce, err = v.HasPermanentBounce(ctx, email, provider); err != nil {
		return nil, err
	}
	s.HasComplaint = s.ComplaintCount > 0
	return s, nil
}

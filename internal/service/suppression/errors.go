package suppression

import (
	"errors"
	"fmt"

	"github.com/ignite/email-tracker/internal/domain"
)

// ErrEmailRequired is returned for blank addresses.
var ErrEmailRequired = errors.New("suppression: email is required")

// SuppressedError reports an address that the policy blocks.
type SuppressedError struct {
	Email  string
	Reason domain.SuppressionReason
}

func (e *SuppressedError) Error() string {
	return fmt.Sprintf("address %s is suppressed: %s", e.Email, e.Reason)
}

package domain

// SuppressionReason enumerates why an address is blocked from sending.
type SuppressionReason string

const (
	ReasonPermanentBounce SuppressionReason = "permanent_bounce"
	ReasonComplaint       SuppressionReason = "complaint"
)

// ValidationSummary describes an address' bounce and complaint history.
type ValidationSummary struct {
	Email              string `json:"email"`
	Provider           string `json:"provider"`
	ShouldBlock        bool   `json:"should_block"`
	BounceCount        int    `json:"bounce_count"`
	ComplaintCount     int    `json:"complaint_count"`
	HasPermanentBounce bool   `json:"has_permanent_bounce"`
	HasComplaint       bool   `json:"has_complaint"`
}

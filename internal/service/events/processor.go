package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/dedupe"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// Outcome is the result of applying one event.
type Outcome string

const (
	// Processed means a row was written and a notification emitted.
	Processed Outcome = "processed"
	// NotTracked means no SentEmail matched the id with tracking enabled.
	NotTracked Outcome = "not_tracked"
	// Acknowledged means the event type is valid but not persisted here.
	Acknowledged Outcome = "acknowledged"
	// Duplicate means the replay guard had already seen this event.
	Duplicate Outcome = "duplicate"
)

// Result describes what Apply did.
type Result struct {
	Outcome   Outcome
	EventType domain.EventType
}

// Message returns the response text for the result.
func (r Result) Message() string {
	switch r.Outcome {
	case NotTracked:
		return "Message not tracked"
	case Acknowledged:
		return "Event acknowledged"
	case Duplicate:
		return "Duplicate event ignored"
	}
	switch r.EventType {
	case domain.EventBounced, domain.EventRejected:
		return "Bounce processed"
	case domain.EventComplained:
		return "Complaint processed"
	case domain.EventDelivered:
		return "Delivery processed"
	}
	return "Event processed"
}

// Processor applies normalized events.
type Processor struct {
	store         Store
	publisher     Publisher
	guard         dedupe.Guard
	storeMetadata bool
	now           func() time.Time
}

// Option customises a Processor.
type Option func(*Processor)

// WithMetadata controls whether raw payloads are persisted with bounce and
// complaint rows. Notifications always carry them.
func WithMetadata(store bool) Option {
	return func(p *Processor) { p.storeMetadata = store }
}

// WithGuard installs a replay guard for bounce and complaint events.
func WithGuard(g dedupe.Guard) Option {
	return func(p *Processor) { p.guard = g }
}

// WithClock overrides the receipt-time clock.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor.
func NewProcessor(store Store, publisher Publisher, opts ...Option) *Processor {
	p := &Processor{
		store:     store,
		publisher: publisher,
		guard:     dedupe.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply applies ev. It returns ErrMissingMessageID for events without a
// correlation id and a *ProcessingError when storage fails.
func (p *Processor) Apply(ctx context.Context, ev domain.EmailEventData) (Result, error) {
	res := Result{EventType: ev.EventType}

	category, ok := ev.EventType.Category()
	if !ok {
		res.Outcome = Acknowledged
		return res, nil
	}
	if ev.MessageID == "" {
		logger.Error("event without message id", "provider", ev.Provider, "event", ev.EventType)
		return res, ErrMissingMessageID
	}

	sent, err := p.store.FindTracked(ctx, ev.MessageID, category)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("message not found or tracking disabled, skipping",
			"provider", ev.Provider, "message_id", ev.MessageID, "category", category)
		res.Outcome = NotTracked
		return res, nil
	}
	if err != nil {
		return res, &ProcessingError{Op: "find sent email", Err: err}
	}

	switch category {
	case domain.CategoryBounce:
		return p.applyBounce(ctx, ev, sent, res)
	case domain.CategoryComplaint:
		return p.applyComplaint(ctx, ev, sent, res)
	default:
		return p.applyDelivery(ctx, ev, sent, res)
	}
}

func (p *Processor) applyBounce(ctx context.Context, ev domain.EmailEventData, sent *domain.SentEmail, res Result) (Result, error) {
	key, claimed, err := p.claim(ctx, ev)
	if err != nil {
		return res, err
	}
	if !claimed {
		res.Outcome = Duplicate
		return res, nil
	}

	bounceType := ev.BounceType
	if bounceType == "" {
		bounceType = domain.BouncePermanent
	}
	bounce := &domain.EmailBounce{
		SentEmailID: sent.ID,
		Provider:    ev.Provider,
		Type:        bounceType,
		Email:       p.recipient(ev, sent),
		BouncedAt:   ev.OccurredAt(p.now()),
	}
	if p.storeMetadata {
		bounce.Metadata = encodeMetadata(ev.Metadata)
	}
	if err := p.store.CreateBounce(ctx, bounce); err != nil {
		p.release(ctx, key)
		return res, &ProcessingError{Op: "create bounce", Err: err}
	}

	// Listeners always see the payload, persisted or not
	if bounce.Metadata == nil {
		bounce.Metadata = encodeMetadata(ev.Metadata)
	}
	p.publish(ctx, domain.Notification{
		Type:       domain.NotifyBounced,
		Provider:   ev.Provider,
		MessageID:  ev.MessageID,
		Email:      bounce.Email,
		SentEmail:  sent,
		Bounce:     bounce,
		OccurredAt: bounce.BouncedAt,
	})
	logger.Debug("bounce processed", "provider", ev.Provider, "email", bounce.Email, "type", bounce.Type)

	res.Outcome = Processed
	return res, nil
}

func (p *Processor) applyComplaint(ctx context.Context, ev domain.EmailEventData, sent *domain.SentEmail, res Result) (Result, error) {
	key, claimed, err := p.claim(ctx, ev)
	if err != nil {
		return res, err
	}
	if !claimed {
		res.Outcome = Duplicate
		return res, nil
	}

	complaintType := ev.ComplaintType
	if complaintType == "" {
		complaintType = domain.ComplaintAbuse
	}
	complaint := &domain.EmailComplaint{
		SentEmailID:  sent.ID,
		Provider:     ev.Provider,
		Type:         complaintType,
		Email:        p.recipient(ev, sent),
		ComplainedAt: ev.OccurredAt(p.now()),
	}
	if p.storeMetadata {
		complaint.Metadata = encodeMetadata(ev.Metadata)
	}
	if err := p.store.CreateComplaint(ctx, complaint); err != nil {
		p.release(ctx, key)
		return res, &ProcessingError{Op: "create complaint", Err: err}
	}

	if complaint.Metadata == nil {
		complaint.Metadata = encodeMetadata(ev.Metadata)
	}
	p.publish(ctx, domain.Notification{
		Type:       domain.NotifyComplained,
		Provider:   ev.Provider,
		MessageID:  ev.MessageID,
		Email:      complaint.Email,
		SentEmail:  sent,
		Complaint:  complaint,
		OccurredAt: complaint.ComplainedAt,
	})
	logger.Debug("complaint processed", "provider", ev.Provider, "email", complaint.Email, "type", complaint.Type)

	res.Outcome = Processed
	return res, nil
}

func (p *Processor) applyDelivery(ctx context.Context, ev domain.EmailEventData, sent *domain.SentEmail, res Result) (Result, error) {
	at := ev.OccurredAt(p.now())
	if err := p.store.MarkDelivered(ctx, sent.ID, at); err != nil {
		return res, &ProcessingError{Op: "mark delivered", Err: err}
	}
	sent.DeliveredAt = &at

	p.publish(ctx, domain.Notification{
		Type:       domain.NotifyDelivered,
		Provider:   ev.Provider,
		MessageID:  ev.MessageID,
		Email:      p.recipient(ev, sent),
		SentEmail:  sent,
		OccurredAt: at,
	})
	logger.Debug("delivery processed", "provider", ev.Provider, "message_id", ev.MessageID)

	res.Outcome = Processed
	return res, nil
}

// claim consults the replay guard. Events without a provider timestamp are
// never deduplicated since distinct bounces could not be told apart.
func (p *Processor) claim(ctx context.Context, ev domain.EmailEventData) (string, bool, error) {
	if ev.Timestamp == nil {
		return "", true, nil
	}
	key := dedupe.Key(string(ev.Provider), ev.MessageID, string(ev.EventType), ev.Timestamp.UTC().Format(time.RFC3339Nano))
	ok, err := p.guard.Claim(ctx, key)
	if err != nil {
		return "", false, &ProcessingError{Op: "claim event", Err: err}
	}
	return key, ok, nil
}

func (p *Processor) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := p.guard.Release(ctx, key); err != nil {
		logger.Warn("failed to release replay guard", "error", err)
	}
}

func (p *Processor) recipient(ev domain.EmailEventData, sent *domain.SentEmail) string {
	if ev.Email != "" {
		return ev.Email
	}
	return sent.Email
}

func (p *Processor) publish(ctx context.Context, n domain.Notification) {
	if p.publisher != nil {
		p.publisher.Publish(ctx, n)
	}
}

func encodeMetadata(m map[string]interface{}) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		logger.Warn("failed to encode event metadata", "error", err)
		return nil
	}
	return data
}

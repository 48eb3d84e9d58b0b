package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

var postalRoutes = map[string]route{
	"MessageBounced":     {event: domain.EventBounced},
	"MessageDelivered":   {event: domain.EventDelivered},
	"MessageSent":        {event: domain.EventSent, ack: true},
	"MessageDelayed":     {ack: true},
	"MessageHeld":        {ack: true},
	"MessageLinkClicked": {event: domain.EventClicked, ack: true},
}

const postalKeyHeader = "X-Postal-Webhook-Key"

type postalMessage struct {
	ID        flexString        `json:"id"`
	MessageID string            `json:"message_id"`
	RcptTo    string            `json:"rcpt_to"`
	Headers   map[string]string `json:"headers"`
}

type postalBody struct {
	Message   postalMessage `json:"message"`
	Output    string        `json:"output"`
	Timestamp float64       `json:"timestamp"`
}

type postalPayload struct {
	Event string `json:"event"`
	postalBody
	// Postal's own format nests the event body under "payload".
	Payload *postalBody `json:"payload"`
}

// body returns the event body, preferring the nested payload when present.
func (p postalPayload) body() postalBody {
	if p.Payload != nil {
		b := *p.Payload
		if b.Timestamp == 0 {
			b.Timestamp = p.Timestamp
		}
		return b
	}
	return p.postalBody
}

// Postal authenticates webhooks with a shared key header.
type Postal struct {
	base
}

// NewPostal creates the Postal handler.
func NewPostal(proc Processor, webhookKey string, requireSignature bool) *Postal {
	return &Postal{base: newBase(domain.ProviderPostal, proc, webhookKey, requireSignature, postalRoutes)}
}

// Verify implements Handler.
func (p *Postal) Verify(req *Request) bool {
	if p.secret == "" {
		return p.unverified()
	}
	key := req.Header.Get(postalKeyHeader)
	if key == "" {
		logger.Warn("postal webhook missing key header", "header", postalKeyHeader)
		return false
	}
	return secureCompare(p.secret, key)
}

// Normalize implements Handler.
func (p *Postal) Normalize(req *Request) (domain.EmailEventData, error) {
	var pl postalPayload
	meta, err := decode(req.Body, &pl)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	rt, ok := p.routes[firstNonEmpty(pl.Event, req.EventHint)]
	if !ok || rt.event == "" {
		return domain.EmailEventData{}, ErrUnsupportedEvent
	}

	b := pl.body()
	ev := domain.EmailEventData{
		MessageID: postalMessageID(b.Message),
		Email:     b.Message.RcptTo,
		Provider:  domain.ProviderPostal,
		EventType: rt.event,
		Timestamp: epochTime(b.Timestamp),
		Metadata:  meta,
	}
	if rt.event == domain.EventBounced {
		ev.BounceType = postalBounceType(b.Output)
	}
	return ev, nil
}

// Handle implements Handler.
func (p *Postal) Handle(ctx context.Context, req *Request) Response {
	var pl postalPayload
	if err := json.Unmarshal(req.Body, &pl); err != nil {
		return invalidPayload()
	}
	return p.dispatch(ctx, firstNonEmpty(pl.Event, req.EventHint), func() (domain.EmailEventData, error) { return p.Normalize(req) })
}

// postalMessageID prefers the X-Message-ID header set at send time, since
// Postal's own ids never match a SentEmail.
func postalMessageID(m postalMessage) string {
	for k, v := range m.Headers {
		if strings.EqualFold(k, "x-message-id") && v != "" {
			return strings.Trim(v, "<>")
		}
	}
	return firstNonEmpty(string(m.ID), m.MessageID)
}

func postalBounceType(output string) domain.BounceType {
	out := strings.ToLower(output)
	switch {
	case containsAny(out, "permanent", "550"):
		return domain.BouncePermanent
	case containsAny(out, "temporary", "451"):
		return domain.BounceTransient
	}
	return domain.BouncePermanent
}

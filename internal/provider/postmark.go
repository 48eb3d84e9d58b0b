package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

var postmarkRoutes = map[string]route{
	"Bounce":             {event: domain.EventBounced},
	"SpamComplaint":      {event: domain.EventComplained},
	"Delivery":           {event: domain.EventDelivered},
	"Open":               {event: domain.EventOpened, ack: true},
	"Click":              {event: domain.EventClicked, ack: true},
	"SubscriptionChange": {ack: true},
}

const postmarkTokenHeader = "X-Postmark-Webhook-Token"

// Postmark bounce TypeCodes.
var (
	postmarkPermanentCodes = map[int64]bool{1: true, 100000: true, 100001: true, 100002: true, 100006: true, 100009: true}
	postmarkTransientCodes = map[int64]bool{2: true, 256: true, 4096: true, 100007: true}
)

type postmarkPayload struct {
	RecordType  string `json:"RecordType"`
	MessageID   string `json:"MessageID"`
	Recipient   string `json:"Recipient"`
	Email       string `json:"Email"`
	Type        string `json:"Type"`
	TypeCode    int64  `json:"TypeCode"`
	BouncedAt   string `json:"BouncedAt"`
	DeliveredAt string `json:"DeliveredAt"`
	ReceivedAt  string `json:"ReceivedAt"`
}

// Postmark authenticates webhooks with a shared token, sent either in a
// header or as the Basic auth password.
type Postmark struct {
	base
}

// NewPostmark creates the Postmark handler.
func NewPostmark(proc Processor, webhookToken string, requireSignature bool) *Postmark {
	return &Postmark{base: newBase(domain.ProviderPostmark, proc, webhookToken, requireSignature, postmarkRoutes)}
}

// Verify implements Handler.
func (p *Postmark) Verify(req *Request) bool {
	if p.secret == "" {
		return p.unverified()
	}
	if token := req.Header.Get(postmarkTokenHeader); token != "" {
		return secureCompare(p.secret, token)
	}
	if pass, ok := req.basicPassword(); ok {
		return secureCompare(p.secret, pass)
	}
	logger.Warn("postmark webhook missing credentials")
	return false
}

// Normalize implements Handler.
func (p *Postmark) Normalize(req *Request) (domain.EmailEventData, error) {
	var pl postmarkPayload
	meta, err := decode(req.Body, &pl)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	rt, ok := p.routes[firstNonEmpty(pl.RecordType, req.EventHint)]
	if !ok || rt.event == "" {
		return domain.EmailEventData{}, ErrUnsupportedEvent
	}

	ev := domain.EmailEventData{
		MessageID: pl.MessageID,
		Email:     firstNonEmpty(pl.Recipient, pl.Email),
		Provider:  domain.ProviderPostmark,
		EventType: rt.event,
		Metadata:  meta,
	}
	switch rt.event {
	case domain.EventBounced:
		ev.BounceType = postmarkBounceType(pl.TypeCode, pl.Type)
		ev.Timestamp = parseTime(pl.BouncedAt)
	case domain.EventComplained:
		ev.ComplaintType = domain.ParseComplaintType("spam")
		ev.Timestamp = parseTime(pl.BouncedAt)
	default:
		ev.Timestamp = parseTime(firstNonEmpty(pl.DeliveredAt, pl.ReceivedAt))
	}
	return ev, nil
}

// Handle implements Handler.
func (p *Postmark) Handle(ctx context.Context, req *Request) Response {
	var pl postmarkPayload
	if err := json.Unmarshal(req.Body, &pl); err != nil {
		return invalidPayload()
	}
	return p.dispatch(ctx, firstNonEmpty(pl.RecordType, req.EventHint), func() (domain.EmailEventData, error) { return p.Normalize(req) })
}

func postmarkBounceType(code int64, typ string) domain.BounceType {
	switch {
	case postmarkPermanentCodes[code]:
		return domain.BouncePermanent
	case postmarkTransientCodes[code]:
		return domain.BounceTransient
	}
	t := strings.ToLower(typ)
	switch {
	case containsAny(t, "hard", "bad"):
		return domain.BouncePermanent
	case containsAny(t, "soft", "transient"):
		return domain.BounceTransient
	}
	return domain.BouncePermanent
}

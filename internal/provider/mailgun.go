package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

var mailgunRoutes = map[string]route{
	"failed":       {event: domain.EventBounced},
	"complained":   {event: domain.EventComplained},
	"delivered":    {event: domain.EventDelivered},
	"accepted":     {event: domain.EventSent, ack: true},
	"opened":       {event: domain.EventOpened, ack: true},
	"clicked":      {event: domain.EventClicked, ack: true},
	"unsubscribed": {ack: true},
	"stored":       {ack: true},
}

type mailgunPayload struct {
	Signature struct {
		Timestamp flexString `json:"timestamp"`
		Token     string     `json:"token"`
		Signature string     `json:"signature"`
	} `json:"signature"`
	EventData struct {
		Event     string  `json:"event"`
		Severity  string  `json:"severity"`
		Reason    string  `json:"reason"`
		Recipient string  `json:"recipient"`
		Timestamp float64 `json:"timestamp"`
		Message   struct {
			Headers   map[string]string `json:"headers"`
			MessageID string            `json:"message-id"`
		} `json:"message"`
	} `json:"event-data"`
}

// Mailgun verifies HMAC-SHA256 signed webhooks.
type Mailgun struct {
	base
}

// NewMailgun creates the Mailgun handler. signingKey is the webhook signing key.
func NewMailgun(proc Processor, signingKey string, requireSignature bool) *Mailgun {
	return &Mailgun{base: newBase(domain.ProviderMailgun, proc, signingKey, requireSignature, mailgunRoutes)}
}

// Verify recomputes HMAC_SHA256(key, timestamp+token) and rejects requests
// older than five minutes.
func (m *Mailgun) Verify(req *Request) bool {
	if m.secret == "" {
		return m.unverified()
	}

	var p mailgunPayload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return false
	}
	sig := p.Signature
	if sig.Timestamp == "" || sig.Token == "" || sig.Signature == "" {
		logger.Warn("mailgun webhook missing signature parameters")
		return false
	}
	ts, ok := sig.Timestamp.unix()
	if !ok || !m.fresh(ts) {
		logger.Warn("mailgun webhook timestamp outside tolerance", "timestamp", sig.Timestamp)
		return false
	}

	mac := hmac.New(sha256.New, []byte(m.secret))
	mac.Write([]byte(string(sig.Timestamp) + sig.Token))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig.Signature))
}

// Normalize implements Handler.
func (m *Mailgun) Normalize(req *Request) (domain.EmailEventData, error) {
	var p mailgunPayload
	meta, err := decode(req.Body, &p)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	ed := p.EventData
	rt, ok := m.routes[firstNonEmpty(ed.Event, req.EventHint)]
	if !ok || rt.event == "" {
		return domain.EmailEventData{}, ErrUnsupportedEvent
	}

	ev := domain.EmailEventData{
		MessageID: firstNonEmpty(ed.Message.Headers["message-id"], ed.Message.MessageID),
		Email:     ed.Recipient,
		Provider:  domain.ProviderMailgun,
		EventType: rt.event,
		Timestamp: epochTime(ed.Timestamp),
		Metadata:  meta,
	}
	switch rt.event {
	case domain.EventBounced:
		ev.BounceType = mailgunBounceType(ed.Severity, ed.Reason)
	case domain.EventComplained:
		ev.ComplaintType = domain.ParseComplaintType("spam")
	}
	return ev, nil
}

// Handle implements Handler.
func (m *Mailgun) Handle(ctx context.Context, req *Request) Response {
	var p mailgunPayload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return invalidPayload()
	}
	native := firstNonEmpty(p.EventData.Event, req.EventHint)
	return m.dispatch(ctx, native, func() (domain.EmailEventData, error) { return m.Normalize(req) })
}

func mailgunBounceType(severity, reason string) domain.BounceType {
	if severity == "permanent" || strings.Contains(strings.ToLower(reason), "bounce") {
		return domain.BouncePermanent
	}
	if severity == "temporary" {
		return domain.BounceTransient
	}
	return domain.BouncePermanent
}

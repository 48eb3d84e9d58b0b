package provider

import (
	"context"
	"encoding/json"
	"strconv"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

var resendRoutes = map[string]route{
	"email.bounced":          {event: domain.EventBounced},
	"email.complained":       {event: domain.EventComplained},
	"email.delivered":        {event: domain.EventDelivered},
	"email.sent":             {event: domain.EventSent, ack: true},
	"email.opened":           {event: domain.EventOpened, ack: true},
	"email.clicked":          {event: domain.EventClicked, ack: true},
	"email.delivery_delayed": {ack: true},
}

// Svix header names used by Resend.
const (
	svixID        = "svix-id"
	svixTimestamp = "svix-timestamp"
	svixSignature = "svix-signature"
)

type resendPayload struct {
	Type string `json:"type"`
	Data struct {
		EmailID   string   `json:"email_id"`
		To        []string `json:"to"`
		CreatedAt string   `json:"created_at"`
	} `json:"data"`
}

// Resend verifies Svix signed webhooks.
type Resend struct {
	base
	webhook *svix.Webhook
}

// NewResend creates the Resend handler. secret is the Svix signing secret,
// base64 with an optional whsec_ prefix.
func NewResend(proc Processor, secret string, requireSignature bool) *Resend {
	r := &Resend{base: newBase(domain.ProviderResend, proc, secret, requireSignature, resendRoutes)}
	if secret != "" {
		wh, err := svix.NewWebhook(secret)
		if err != nil {
			logger.Error("resend webhook secret is not valid base64, all webhooks will be rejected", "error", err)
			return r
		}
		r.webhook = wh
	}
	return r
}

// Verify checks the svix-signature header; any of its v1 signatures may
// match. The timestamp window is checked against the handler's clock.
func (r *Resend) Verify(req *Request) bool {
	if r.secret == "" {
		return r.unverified()
	}
	if r.webhook == nil {
		return false
	}

	id := req.Header.Get(svixID)
	timestamp := req.Header.Get(svixTimestamp)
	signatures := req.Header.Get(svixSignature)
	if id == "" || timestamp == "" || signatures == "" {
		logger.Warn("resend webhook missing svix headers")
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || !r.fresh(ts) {
		logger.Warn("resend webhook timestamp outside tolerance", "timestamp", timestamp)
		return false
	}

	if err := r.webhook.VerifyIgnoringTimestamp(req.Body, req.Header); err != nil {
		logger.Debug("resend webhook signature mismatch", "svix_id", id, "error", err)
		return false
	}
	return true
}

// Normalize implements Handler.
func (r *Resend) Normalize(req *Request) (domain.EmailEventData, error) {
	var p resendPayload
	meta, err := decode(req.Body, &p)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	rt, ok := r.routes[firstNonEmpty(p.Type, req.EventHint)]
	if !ok || rt.event == "" {
		return domain.EmailEventData{}, ErrUnsupportedEvent
	}

	ev := domain.EmailEventData{
		MessageID: p.Data.EmailID,
		Provider:  domain.ProviderResend,
		EventType: rt.event,
		Timestamp: parseTime(p.Data.CreatedAt),
		Metadata:  meta,
	}
	if len(p.Data.To) > 0 {
		ev.Email = p.Data.To[0]
	}
	switch rt.event {
	case domain.EventBounced:
		// Resend does not classify bounces
		ev.BounceType = domain.BouncePermanent
	case domain.EventComplained:
		ev.ComplaintType = domain.ParseComplaintType("spam")
	}
	return ev, nil
}

// Handle implements Handler.
func (r *Resend) Handle(ctx context.Context, req *Request) Response {
	var p resendPayload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return invalidPayload()
	}
	return r.dispatch(ctx, firstNonEmpty(p.Type, req.EventHint), func() (domain.EmailEventData, error) { return r.Normalize(req) })
}

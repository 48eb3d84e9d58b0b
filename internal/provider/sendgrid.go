package provider

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/sendgrid/sendgrid-go/helpers/eventwebhook"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

var sendgridRoutes = map[string]route{
	"bounce":            {event: domain.EventBounced},
	"dropped":           {event: domain.EventRejected},
	"spamreport":        {event: domain.EventComplained},
	"delivered":         {event: domain.EventDelivered},
	"processed":         {event: domain.EventSent, ack: true},
	"deferred":          {ack: true},
	"open":              {event: domain.EventOpened, ack: true},
	"click":             {event: domain.EventClicked, ack: true},
	"unsubscribe":       {ack: true},
	"group_unsubscribe": {ack: true},
	"group_resubscribe": {ack: true},
}

const (
	sendgridSignatureHeader = "X-Twilio-Email-Event-Webhook-Signature"
	sendgridTimestampHeader = "X-Twilio-Email-Event-Webhook-Timestamp"
)

// sg_message_id is "<X-Message-Id>.<routing suffix>"; older formats prefix
// the id with the filter host instead.
var sendgridFilterPrefix = regexp.MustCompile(`^filter\d+p\d+[a-z]+\d+-(.+)$`)

type sendgridEvent struct {
	Event          string     `json:"event"`
	Email          string     `json:"email"`
	Timestamp      float64    `json:"timestamp"`
	SGMessageID    string     `json:"sg_message_id"`
	SMTPID         string     `json:"smtp-id"`
	Type           string     `json:"type"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	Classification string     `json:"bounce_classification"`
	EventID        flexString `json:"sg_event_id"`
}

// SendGrid verifies ECDSA signed batch webhooks.
type SendGrid struct {
	base
	key *ecdsa.PublicKey
}

// NewSendGrid creates the SendGrid handler. verificationKey is the base64 or
// PEM encoded public key from the SendGrid console.
func NewSendGrid(proc Processor, verificationKey string, requireSignature bool) *SendGrid {
	s := &SendGrid{base: newBase(domain.ProviderSendGrid, proc, verificationKey, requireSignature, sendgridRoutes)}
	if verificationKey != "" {
		key, err := eventwebhook.ConvertPublicKeyBase64ToECDSA(sendgridKeyBase64(verificationKey))
		if err != nil {
			logger.Error("sendgrid verification key could not be parsed, all webhooks will be rejected", "error", err)
			return s
		}
		s.key = key
	}
	return s
}

// sendgridKeyBase64 unwraps a PEM armored key to the bare base64 DER the
// console shows.
func sendgridKeyBase64(key string) string {
	key = strings.TrimSpace(key)
	if block, _ := pem.Decode([]byte(key)); block != nil {
		return base64.StdEncoding.EncodeToString(block.Bytes)
	}
	return key
}

// Verify checks the ECDSA signature over timestamp+body.
func (s *SendGrid) Verify(req *Request) bool {
	if s.secret == "" {
		return s.unverified()
	}
	if s.key == nil {
		return false
	}

	signature := req.Header.Get(sendgridSignatureHeader)
	timestamp := req.Header.Get(sendgridTimestampHeader)
	if signature == "" || timestamp == "" {
		logger.Warn("sendgrid webhook missing signature headers")
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || !s.fresh(ts) {
		logger.Warn("sendgrid webhook timestamp outside tolerance", "timestamp", timestamp)
		return false
	}
	ok, err := eventwebhook.VerifySignature(s.key, req.Body, signature, timestamp)
	if err != nil {
		logger.Debug("sendgrid webhook signature malformed", "error", err)
		return false
	}
	return ok
}

// Normalize maps the first tracked event of the batch.
func (s *SendGrid) Normalize(req *Request) (domain.EmailEventData, error) {
	items, err := s.parse(req.Body)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	for _, raw := range items {
		ev, err := s.normalizeEvent(raw)
		if errors.Is(err, ErrUnsupportedEvent) {
			continue
		}
		return ev, err
	}
	return domain.EmailEventData{}, ErrUnsupportedEvent
}

// Handle processes every event in the batch independently. The batch is
// always answered with 200 so SendGrid does not redeliver the good events.
func (s *SendGrid) Handle(ctx context.Context, req *Request) Response {
	items, err := s.parse(req.Body)
	if err != nil {
		return invalidPayload()
	}

	processed, failed := 0, 0
	for _, raw := range items {
		var item sendgridEvent
		if err := json.Unmarshal(raw, &item); err != nil {
			failed++
			continue
		}
		resp := s.dispatch(ctx, item.Event, func() (domain.EmailEventData, error) { return s.normalizeEvent(raw) })
		if resp.Failed() {
			failed++
			continue
		}
		processed++
	}

	msg := fmt.Sprintf("Processed %d events", processed)
	if failed > 0 {
		msg = fmt.Sprintf("%s, %d errors", msg, failed)
	}
	logger.Info("sendgrid batch handled", "processed", processed, "errors", failed)
	return Response{Status: http.StatusOK, Body: map[string]interface{}{
		"success":   true,
		"message":   msg,
		"processed": processed,
		"errors":    failed,
	}}
}

// parse accepts either a JSON array of events or a single event object.
func (s *SendGrid) parse(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return items, nil
}

func (s *SendGrid) normalizeEvent(raw json.RawMessage) (domain.EmailEventData, error) {
	var item sendgridEvent
	meta, err := decode(raw, &item)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	rt, ok := s.routes[item.Event]
	if !ok || rt.event == "" || rt.ack {
		return domain.EmailEventData{}, ErrUnsupportedEvent
	}

	ev := domain.EmailEventData{
		MessageID: sendgridMessageID(item.SGMessageID, item.SMTPID),
		Email:     item.Email,
		Provider:  domain.ProviderSendGrid,
		EventType: rt.event,
		Timestamp: epochTime(item.Timestamp),
		Metadata:  meta,
	}
	switch rt.event {
	case domain.EventBounced:
		ev.BounceType = sendgridBounceType(item)
	case domain.EventRejected:
		ev.BounceType = domain.BouncePermanent
	case domain.EventComplained:
		ev.ComplaintType = domain.ParseComplaintType("spam")
	}
	return ev, nil
}

// sendgridMessageID extracts the id that was returned by the send API from
// sg_message_id, falling back to the smtp-id header.
func sendgridMessageID(sgMessageID, smtpID string) string {
	id := sgMessageID
	if m := sendgridFilterPrefix.FindStringSubmatch(id); m != nil {
		id = m[1]
	} else if i := strings.IndexByte(id, '.'); i > 0 {
		id = id[:i]
	}
	if id == "" {
		id = strings.Trim(smtpID, "<>")
	}
	return id
}

func sendgridBounceType(item sendgridEvent) domain.BounceType {
	switch {
	case item.Type == "bounce" || item.Classification == "Invalid Address":
		return domain.BouncePermanent
	case item.Type == "blocked" || item.Type == "expired" || item.Classification == "Technical Failure":
		return domain.BounceTransient
	}
	reason := strings.ToLower(item.Reason)
	switch {
	case containsAny(reason, "invalid", "does not exist", "unknown user"):
		return domain.BouncePermanent
	case containsAny(reason, "temporarily", "try again", "rate limit"):
		return domain.BounceTransient
	}
	return domain.BouncePermanent
}

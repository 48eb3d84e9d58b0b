package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/provider/sns"
)

var sesRoutes = map[string]route{
	"bounce":    {event: domain.EventBounced},
	"complaint": {event: domain.EventComplained},
	"delivery":  {event: domain.EventDelivered},
}

type sesRecipient struct {
	EmailAddress string `json:"emailAddress"`
}

type sesNotification struct {
	NotificationType string `json:"notificationType"`
	Mail             struct {
		MessageID   string   `json:"messageId"`
		Destination []string `json:"destination"`
		Timestamp   string   `json:"timestamp"`
	} `json:"mail"`
	Bounce *struct {
		BounceType        string         `json:"bounceType"`
		BounceSubType     string         `json:"bounceSubType"`
		BouncedRecipients []sesRecipient `json:"bouncedRecipients"`
		Timestamp         string         `json:"timestamp"`
	} `json:"bounce"`
	Complaint *struct {
		ComplaintFeedbackType string         `json:"complaintFeedbackType"`
		ComplainedRecipients  []sesRecipient `json:"complainedRecipients"`
		Timestamp             string         `json:"timestamp"`
	} `json:"complaint"`
	Delivery *struct {
		Timestamp  string   `json:"timestamp"`
		Recipients []string `json:"recipients"`
	} `json:"delivery"`
}

// kind returns bounce, complaint or delivery depending on which section is present.
func (n *sesNotification) kind() string {
	switch {
	case n.Bounce != nil:
		return "bounce"
	case n.Complaint != nil:
		return "complaint"
	case n.Delivery != nil:
		return "delivery"
	}
	return ""
}

// SES receives Amazon SES notifications through SNS.
type SES struct {
	base
	verifier *sns.Verifier
	client   httpretry.HTTPDoer
}

// NewSES creates the SES handler. A nil verifier disables SNS signature
// validation. client is used to confirm subscriptions.
func NewSES(proc Processor, verifier *sns.Verifier, client httpretry.HTTPDoer, requireSignature bool) *SES {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 2)
	}
	return &SES{
		base:     newBase(domain.ProviderSES, proc, "", requireSignature, sesRoutes),
		verifier: verifier,
		client:   client,
	}
}

// Verify validates the SNS envelope signature.
func (s *SES) Verify(req *Request) bool {
	if s.verifier == nil {
		return s.unverified()
	}
	msg, err := sns.Parse(req.Body)
	if err != nil {
		logger.Warn("ses webhook is not an SNS envelope", "error", err)
		return false
	}
	if err := s.verifier.Verify(req.Context(), msg); err != nil {
		logger.Warn("ses webhook SNS signature rejected", "error", err)
		return false
	}
	return true
}

// envelope splits the body into the SNS envelope (nil for raw SES JSON) and
// the SES notification content.
func (s *SES) envelope(body []byte) (*sns.Message, []byte, error) {
	var probe struct {
		Type string          `json:"Type"`
		Mail json.RawMessage `json:"mail"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if probe.Type == "" {
		if probe.Mail == nil {
			return nil, nil, fmt.Errorf("%w: neither SNS envelope nor SES notification", ErrInvalidPayload)
		}
		return nil, body, nil
	}
	msg, err := sns.Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return msg, []byte(msg.Message), nil
}

// Normalize implements Handler.
func (s *SES) Normalize(req *Request) (domain.EmailEventData, error) {
	_, content, err := s.envelope(req.Body)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	return s.normalizeContent(content, req.EventHint)
}

func (s *SES) normalizeContent(content []byte, hint string) (domain.EmailEventData, error) {
	var n sesNotification
	meta, err := decode(content, &n)
	if err != nil {
		return domain.EmailEventData{}, err
	}
	rt, ok := s.routes[firstNonEmpty(hint, n.kind())]
	if !ok {
		return domain.EmailEventData{}, ErrUnsupportedEvent
	}

	ev := domain.EmailEventData{
		MessageID: n.Mail.MessageID,
		Provider:  domain.ProviderSES,
		EventType: rt.event,
		Metadata:  meta,
	}
	var destination string
	if len(n.Mail.Destination) > 0 {
		destination = n.Mail.Destination[0]
	}
	ev.Email = destination

	switch rt.event {
	case domain.EventBounced:
		ev.BounceType = domain.BouncePermanent
		if b := n.Bounce; b != nil {
			ev.BounceType = domain.ParseBounceType(b.BounceType)
			ev.Timestamp = parseTime(b.Timestamp)
			if len(b.BouncedRecipients) > 0 {
				ev.Email = firstNonEmpty(b.BouncedRecipients[0].EmailAddress, destination)
			}
		}
	case domain.EventComplained:
		ev.ComplaintType = domain.ParseComplaintType("")
		if c := n.Complaint; c != nil {
			ev.ComplaintType = domain.ParseComplaintType(c.ComplaintFeedbackType)
			ev.Timestamp = parseTime(c.Timestamp)
			if len(c.ComplainedRecipients) > 0 {
				ev.Email = firstNonEmpty(c.ComplainedRecipients[0].EmailAddress, destination)
			}
		}
	case domain.EventDelivered:
		if d := n.Delivery; d != nil {
			ev.Timestamp = parseTime(d.Timestamp)
		}
	}
	return ev, nil
}

// Handle implements Handler. SNS control messages are answered here; SES
// content is applied like any other provider event.
func (s *SES) Handle(ctx context.Context, req *Request) Response {
	msg, content, err := s.envelope(req.Body)
	if err != nil {
		logger.Error("failed to parse ses webhook", "error", err)
		return invalidPayload()
	}

	if msg != nil {
		switch {
		case msg.IsSubscriptionConfirmation():
			if err := sns.ConfirmSubscription(ctx, s.client, msg); err != nil {
				logger.Error("sns subscription confirmation failed", "topic", msg.TopicArn, "error", err)
				return errorResponse(http.StatusInternalServerError, "Subscription confirmation failed")
			}
			logger.Info("subscribed to sns topic", "topic", msg.TopicArn)
			return okResponse("Subscription confirmed")
		case msg.IsTopicValidation():
			return okResponse("Topic validated")
		case msg.Type != sns.TypeNotification:
			return okResponse(fmt.Sprintf("Event %s acknowledged", msg.Type))
		}
	}

	var n sesNotification
	if err := json.Unmarshal(content, &n); err != nil {
		logger.Error("failed to decode ses notification content", "error", err)
		return invalidPayload()
	}
	kind := firstNonEmpty(req.EventHint, n.kind())
	if _, ok := s.routes[kind]; !ok {
		return errorResponse(http.StatusBadRequest, "Unknown event type")
	}

	ev, err := s.normalizeContent(content, kind)
	if err != nil {
		logger.Error("failed to normalize ses notification", "error", err)
		return invalidPayload()
	}
	return s.apply(ctx, ev)
}

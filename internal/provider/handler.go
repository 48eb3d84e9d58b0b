package provider

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/service/events"
)

// Handler is the capability every provider implements.
type Handler interface {
	// Name returns the path segment the provider is addressed by.
	Name() string
	// Verify authenticates the request. A false return is answered with 403.
	Verify(req *Request) bool
	// Normalize maps a single provider event onto the canonical shape.
	Normalize(req *Request) (domain.EmailEventData, error)
	// Handle processes an already verified request.
	Handle(ctx context.Context, req *Request) Response
}

// Processor applies normalized events to tracking state.
type Processor interface {
	Apply(ctx context.Context, ev domain.EmailEventData) (events.Result, error)
}

// Response is the HTTP answer to a webhook.
type Response struct {
	Status int
	Body   map[string]interface{}
}

func okResponse(message string) Response {
	return Response{Status: http.StatusOK, Body: map[string]interface{}{"success": true, "message": message}}
}

func errorResponse(status int, message string) Response {
	return Response{Status: status, Body: map[string]interface{}{"success": false, "error": message}}
}

func invalidPayload() Response {
	return errorResponse(http.StatusBadRequest, "Invalid payload")
}

// Failed reports whether the response is a client or server error.
func (r Response) Failed() bool { return r.Status >= http.StatusBadRequest }

// Outcome returns a short label for metrics.
func (r Response) Outcome() string {
	switch {
	case r.Status >= http.StatusInternalServerError:
		return "failed"
	case r.Status >= http.StatusBadRequest:
		return "rejected"
	}
	if msg, _ := r.Body["message"].(string); msg == "Message not tracked" {
		return "not_tracked"
	}
	return "ok"
}

// route says what to do with one native event type.
type route struct {
	event domain.EventType
	// ack events are answered without touching storage
	ack bool
}

// freshnessWindow is the replay tolerance for timestamped signatures.
const freshnessWindow = 300 * time.Second

// base carries what every built-in handler shares.
type base struct {
	name    domain.Provider
	proc    Processor
	secret  string
	require bool
	now     func() time.Time
	routes  map[string]route
}

func newBase(name domain.Provider, proc Processor, secret string, require bool, routes map[string]route) base {
	return base{name: name, proc: proc, secret: secret, require: require, now: time.Now, routes: routes}
}

func (b *base) Name() string { return string(b.name) }

// unverified decides the result when no secret is configured: accepted in
// open mode, rejected when the provider requires signatures.
func (b *base) unverified() bool {
	if b.require {
		logger.Warn("webhook rejected: signature required but no secret configured", "provider", b.name)
		return false
	}
	logger.Warn("webhook signature not verified: no secret configured", "provider", b.name)
	return true
}

// fresh reports whether a unix timestamp is within the freshness window.
func (b *base) fresh(ts int64) bool {
	d := b.now().Sub(time.Unix(ts, 0))
	if d < 0 {
		d = -d
	}
	return d <= freshnessWindow
}

// dispatch routes one native event type: unknown types are answered as not
// tracked, ack types as acknowledged, and the rest normalized and applied.
func (b *base) dispatch(ctx context.Context, native string, normalize func() (domain.EmailEventData, error)) Response {
	rt, ok := b.routes[native]
	if !ok {
		logger.Debug("event type not tracked", "provider", b.name, "event", native)
		return okResponse("Event type not tracked")
	}
	if rt.ack {
		logger.Debug("event acknowledged", "provider", b.name, "event", native)
		return okResponse(fmt.Sprintf("Event %s acknowledged", native))
	}

	ev, err := normalize()
	if err != nil {
		logger.Error("failed to normalize webhook", "provider", b.name, "event", native, "error", err)
		return invalidPayload()
	}
	return b.apply(ctx, ev)
}

func (b *base) apply(ctx context.Context, ev domain.EmailEventData) Response {
	res, err := b.proc.Apply(ctx, ev)
	switch {
	case errors.Is(err, events.ErrMissingMessageID):
		return errorResponse(http.StatusBadRequest, "Missing message ID")
	case err != nil:
		logger.Error("failed to process webhook event", "provider", b.name, "event", ev.EventType, "error", err)
		return errorResponse(http.StatusInternalServerError, "Processing failed")
	}
	return okResponse(res.Message())
}

// secureCompare is a constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

package sending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/pkg/metrics"
	"github.com/ignite/email-tracker/internal/service/events"
)

// Config holds the pipeline defaults.
type Config struct {
	DefaultProvider domain.Provider
	// Tracking applies when a Request does not choose its own options.
	Tracking domain.TrackingOptions
	// UnsubscribeHeaders adds List-Unsubscribe to every send unless a
	// Request overrides it.
	UnsubscribeHeaders bool
	UnsubscribeMailto  string
	// SESConfigurationSet is added as X-SES-CONFIGURATION-SET on SES sends.
	SESConfigurationSet string
	// MessageIDDomain is the right-hand side of generated message ids.
	MessageIDDomain string
}

// Request is one tracked send.
type Request struct {
	Message domain.Message
	// Provider selects the transport; empty uses the default provider.
	Provider domain.Provider
	// Tracking overrides the configured tracking options.
	Tracking *domain.TrackingOptions
	// Batch groups the send under a named batch, created on first use.
	Batch string
	// Unsubscribe overrides Config.UnsubscribeHeaders.
	Unsubscribe *bool
}

// Pipeline sends tracked mail.
type Pipeline struct {
	store       Store
	transports  map[domain.Provider]Transport
	cfg         Config
	suppressor  Suppressor
	rewriter    BodyRewriter
	unsubscribe UnsubscribeSigner
	publisher   events.Publisher
	metrics     *metrics.Metrics
	validate    *validator.Validate
	now         func() time.Time
	newID       func() string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithSuppression checks every recipient before sending.
func WithSuppression(s Suppressor) Option { return func(p *Pipeline) { p.suppressor = s } }

// WithRewriter enables open and link tracking.
func WithRewriter(r BodyRewriter) Option { return func(p *Pipeline) { p.rewriter = r } }

// WithUnsubscribe enables List-Unsubscribe headers.
func WithUnsubscribe(s UnsubscribeSigner) Option { return func(p *Pipeline) { p.unsubscribe = s } }

// WithPublisher receives the sent notification.
func WithPublisher(pub events.Publisher) Option { return func(p *Pipeline) { p.publisher = pub } }

// WithMetrics records send outcomes.
func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithIDGenerator overrides the uuid source used for message ids.
func WithIDGenerator(f func() string) Option { return func(p *Pipeline) { p.newID = f } }

// NewPipeline creates a Pipeline sending through transports, keyed by their Name.
func NewPipeline(store Store, transports []Transport, cfg Config, opts ...Option) *Pipeline {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = domain.ProviderSES
	}
	if cfg.MessageIDDomain == "" {
		cfg.MessageIDDomain = "localhost"
	}
	p := &Pipeline{
		store:      store,
		transports: make(map[domain.Provider]Transport, len(transports)),
		cfg:        cfg,
		validate:   validator.New(),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, t := range transports {
		p.transports[t.Name()] = t
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send runs the pipeline for one message. Refusals come back as a Result;
// errors are reserved for invalid input, storage and transport failures.
func (p *Pipeline) Send(ctx context.Context, req Request) (Result, error) {
	msg := req.Message
	msg.Headers = make(map[string]string, len(req.Message.Headers)+5)
	for k, v := range req.Message.Headers {
		msg.Headers[k] = v
	}
	provider := req.Provider
	if provider == "" {
		provider = p.cfg.DefaultProvider
	}

	switch {
	case len(msg.To) > 1:
		p.metrics.Send(string(provider), string(StatusTooManyRecipients))
		return Result{Status: StatusTooManyRecipients}, nil
	case len(msg.To) == 0:
		return Result{}, ErrNoRecipient
	}
	recipient := strings.TrimSpace(msg.To[0].Email)
	if err := p.validate.Var(recipient, "required,email"); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidRecipient, recipient)
	}

	transport, ok := p.transports[provider]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTransport, provider)
	}

	if res, blocked, err := p.checkSuppression(ctx, &msg, provider); err != nil || blocked {
		return res, err
	}

	opts := p.cfg.Tracking
	if req.Tracking != nil {
		opts = *req.Tracking
	}

	sent := &domain.SentEmail{
		Provider:          provider,
		MessageID:         p.newID() + "@" + p.cfg.MessageIDDomain,
		Email:             recipient,
		SentAt:            p.now().UTC(),
		BounceTracking:    opts.Bounces,
		ComplaintTracking: opts.Complaints,
		DeliveryTracking:  opts.Deliveries,
	}
	if req.Batch != "" {
		batch, err := p.store.FindOrCreateBatch(ctx, req.Batch)
		if err != nil {
			return Result{}, fmt.Errorf("find or create batch: %w", err)
		}
		sent.BatchID = &batch.ID
	}
	if err := p.store.CreateSentEmail(ctx, sent); err != nil {
		return Result{}, fmt.Errorf("create sent email: %w", err)
	}

	if p.rewriter != nil && msg.HTMLBody != "" {
		html, err := p.rewriter.Rewrite(ctx, sent, msg.HTMLBody, opts)
		if err != nil {
			return Result{}, fmt.Errorf("rewrite body: %w", err)
		}
		msg.HTMLBody = html
	}

	if err := p.setHeaders(&msg, sent, req.Unsubscribe); err != nil {
		return Result{}, err
	}

	providerID, err := transport.Send(ctx, &msg)
	if err != nil {
		te := ClassifyTransportError(provider, err)
		p.metrics.Send(string(provider), string(te.Kind))
		logger.Error("tracked send failed", "provider", provider, "email", recipient, "kind", te.Kind, "error", err)
		return Result{}, te
	}

	if providerID != "" && providerID != sent.MessageID {
		if err := p.store.UpdateMessageID(ctx, sent.ID, providerID); err != nil {
			return Result{}, fmt.Errorf("update message id: %w", err)
		}
		sent.MessageID = providerID
	}

	p.metrics.Send(string(provider), string(StatusSent))
	if p.publisher != nil {
		p.publisher.Publish(ctx, domain.Notification{
			Type:       domain.NotifySent,
			Provider:   provider,
			MessageID:  sent.MessageID,
			Email:      sent.Email,
			SentEmail:  sent,
			OccurredAt: sent.SentAt,
		})
	}
	logger.Debug("tracked email sent", "provider", provider, "email", recipient, "message_id", sent.MessageID)

	return Result{Status: StatusSent, SentEmail: sent}, nil
}

// checkSuppression runs the suppression policy over every recipient.
func (p *Pipeline) checkSuppression(ctx context.Context, msg *domain.Message, provider domain.Provider) (Result, bool, error) {
	if p.suppressor == nil {
		return Result{}, false, nil
	}
	for _, email := range msg.Recipients() {
		reason, err := p.suppressor.Reason(ctx, email, provider)
		if err != nil {
			return Result{}, false, fmt.Errorf("check suppression: %w", err)
		}
		if reason != "" {
			p.metrics.Send(string(provider), string(StatusSuppressed))
			logger.Info("send suppressed", "provider", provider, "email", email, "reason", reason)
			return Result{Status: StatusSuppressed, Email: email, Reason: reason}, true, nil
		}
	}
	return Result{}, false, nil
}

func (p *Pipeline) setHeaders(msg *domain.Message, sent *domain.SentEmail, unsubscribe *bool) error {
	msg.SetHeader("Message-ID", "<"+sent.MessageID+">")
	msg.SetHeader(domain.HeaderMessageID, sent.MessageID)
	if sent.Provider == domain.ProviderSES && p.cfg.SESConfigurationSet != "" {
		msg.SetHeader(domain.HeaderSESConfigurationSet, p.cfg.SESConfigurationSet)
	}

	want := p.cfg.UnsubscribeHeaders
	if unsubscribe != nil {
		want = *unsubscribe
	}
	if !want || p.unsubscribe == nil {
		return nil
	}
	link, err := p.unsubscribe.URL(sent.Email, sent.MessageID)
	if err != nil {
		return fmt.Errorf("sign unsubscribe url: %w", err)
	}
	value := "<" + link + ">"
	if p.cfg.UnsubscribeMailto != "" {
		value = "<mailto:" + p.cfg.UnsubscribeMailto + ">, " + value
	}
	msg.SetHeader(domain.HeaderListUnsubscribe, value)
	msg.SetHeader(domain.HeaderListUnsubscribePost, "List-Unsubscribe=One-Click")
	return nil
}

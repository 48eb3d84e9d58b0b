package provider

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/email-tracker/internal/config"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
	"github.com/ignite/email-tracker/internal/provider/sns"
)

type entry struct {
	handler Handler
	enabled bool
}

// Registry maps provider names to handlers. Custom providers register into
// the same map at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a handler under its Name.
func (r *Registry) Register(h Handler, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.Name()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, name)
	}
	r.entries[name] = entry{handler: h, enabled: enabled}
	return nil
}

// SetEnabled toggles a registered provider.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	e.enabled = enabled
	r.entries[name] = e
	return nil
}

// IsEnabled reports whether name is registered and enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.enabled
}

// Resolve returns the handler for an enabled provider.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || !e.enabled {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return e.handler, nil
}

// Names lists the enabled providers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NewFromConfig registers the six built-in handlers with their configured
// secrets and enabled state. client is used for SNS certificate fetches and
// subscription confirmation; nil gets a retrying default.
func NewFromConfig(cfg *config.Config, proc Processor, client httpretry.HTTPDoer) (*Registry, error) {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 2)
	}
	p := cfg.Providers

	var verifier *sns.Verifier
	if p.SES.SNSValidator {
		verifier = sns.NewVerifier(sns.NewHTTPCertSource(client, time.Hour))
	}

	reg := NewRegistry()
	builtins := []struct {
		h       Handler
		enabled bool
	}{
		{NewSES(proc, verifier, client, p.SES.RequireSignature), p.SES.Enabled},
		{NewResend(proc, p.Resend.WebhookSecret, p.Resend.RequireSignature), p.Resend.Enabled},
		{NewPostal(proc, p.Postal.WebhookKey, p.Postal.RequireSignature), p.Postal.Enabled},
		{NewMailgun(proc, p.Mailgun.WebhookSigningKey, p.Mailgun.RequireSignature), p.Mailgun.Enabled},
		{NewSendGrid(proc, p.SendGrid.VerificationKey, p.SendGrid.RequireSignature), p.SendGrid.Enabled},
		{NewPostmark(proc, p.Postmark.WebhookToken, p.Postmark.RequireSignature), p.Postmark.Enabled},
	}
	for _, b := range builtins {
		if err := reg.Register(b.h, b.enabled); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

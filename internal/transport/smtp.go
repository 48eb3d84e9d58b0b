package transport

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/ignite/email-tracker/internal/config"
	"github.com/ignite/email-tracker/internal/domain"
)

// Sender delivers a rendered gomail message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP relays through a plain SMTP server.
type SMTP struct {
	name   domain.Provider
	sender Sender
}

// NewSMTP creates an SMTP transport named name, "smtp" when empty.
func NewSMTP(name domain.Provider, sender Sender) *SMTP {
	if name == "" {
		name = domain.ProviderSMTP
	}
	return &SMTP{name: name, sender: sender}
}

// NewSMTPFromConfig dials the configured relay.
func NewSMTPFromConfig(c config.SMTPConfig) *SMTP {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return NewSMTP(domain.ProviderSMTP, gomail.NewDialer(c.Host, port, c.Username, c.Password))
}

// Name implements sending.Transport.
func (s *SMTP) Name() domain.Provider { return s.name }

// Send implements sending.Transport. The relay assigns no id the tracker can
// see, so the X-Message-ID header stays the correlation key.
func (s *SMTP) Send(ctx context.Context, msg *domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.sender.DialAndSend(newMIMEMessage(msg)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return "", nil
}

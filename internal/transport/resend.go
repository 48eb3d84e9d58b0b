package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
)

const resendBaseURL = "https://api.resend.com"

// Resend sends through the Resend emails API.
type Resend struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewResend creates a Resend transport.
func NewResend(apiKey, baseURL string, client httpretry.HTTPDoer) *Resend {
	if baseURL == "" {
		baseURL = resendBaseURL
	}
	return &Resend{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: defaultClient(client)}
}

// Name implements sending.Transport.
func (s *Resend) Name() domain.Provider { return domain.ProviderResend }

type resendEmail struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Cc      []string          `json:"cc,omitempty"`
	Bcc     []string          `json:"bcc,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Send implements sending.Transport and returns the email id Resend reports
// back as data.email_id in webhooks.
func (s *Resend) Send(ctx context.Context, msg *domain.Message) (string, error) {
	email := resendEmail{
		From:    msg.From.String(),
		To:      formatted(msg.To),
		Cc:      formatted(msg.Cc),
		Bcc:     emails(msg.Bcc),
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
		Text:    msg.TextBody,
		Headers: msg.ExtraHeaders(),
	}
	if msg.ReplyTo != nil {
		email.ReplyTo = msg.ReplyTo.String()
	}

	_, body, err := postJSON(ctx, s.client, domain.ProviderResend, s.baseURL+"/emails", email, map[string]string{
		"Authorization": "Bearer " + s.apiKey,
	})
	if err != nil {
		return "", err
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode resend response: %w", err)
	}
	return result.ID, nil
}

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
)

const mailgunBaseURL = "https://api.mailgun.net/v3"

// Mailgun sends through the Messages API.
type Mailgun struct {
	apiKey  string
	domain  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewMailgun creates a Mailgun transport for the sending domain.
func NewMailgun(apiKey, sendingDomain, baseURL string, client httpretry.HTTPDoer) *Mailgun {
	if baseURL == "" {
		baseURL = mailgunBaseURL
	}
	return &Mailgun{
		apiKey:  apiKey,
		domain:  sendingDomain,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  defaultClient(client),
	}
}

// Name implements sending.Transport.
func (s *Mailgun) Name() domain.Provider { return domain.ProviderMailgun }

// Send implements sending.Transport and returns the Message-Id Mailgun
// assigned, without angle brackets.
func (s *Mailgun) Send(ctx context.Context, msg *domain.Message) (string, error) {
	form := url.Values{}
	form.Set("from", msg.From.String())
	form.Set("to", strings.Join(formatted(msg.To), ","))
	if len(msg.Cc) > 0 {
		form.Set("cc", strings.Join(formatted(msg.Cc), ","))
	}
	if len(msg.Bcc) > 0 {
		form.Set("bcc", strings.Join(emails(msg.Bcc), ","))
	}
	form.Set("subject", msg.Subject)
	if msg.HTMLBody != "" {
		form.Set("html", msg.HTMLBody)
	}
	if msg.TextBody != "" {
		form.Set("text", msg.TextBody)
	}
	if msg.ReplyTo != nil {
		form.Set("h:Reply-To", msg.ReplyTo.String())
	}
	for k, v := range msg.ExtraHeaders() {
		form.Set("h:"+k, v)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.apiKey)

	_, body, err := doRequest(s.client, domain.ProviderMailgun, req)
	if err != nil {
		return "", err
	}
	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode mailgun response: %w", err)
	}
	return strings.Trim(result.ID, "<>"), nil
}

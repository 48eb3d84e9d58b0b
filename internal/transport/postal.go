package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
)

// Postal sends through a Postal server's send API. Postal webhooks echo the
// X-Message-ID header, so Send reports no provider id.
type Postal struct {
	serverURL string
	apiKey    string
	client    httpretry.HTTPDoer
}

// NewPostal creates a Postal transport for serverURL.
func NewPostal(serverURL, apiKey string, client httpretry.HTTPDoer) *Postal {
	return &Postal{serverURL: strings.TrimRight(serverURL, "/"), apiKey: apiKey, client: defaultClient(client)}
}

// Name implements sending.Transport.
func (s *Postal) Name() domain.Provider { return domain.ProviderPostal }

type postalMessageRequest struct {
	To        []string          `json:"to"`
	Cc        []string          `json:"cc,omitempty"`
	Bcc       []string          `json:"bcc,omitempty"`
	From      string            `json:"from"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	Subject   string            `json:"subject"`
	HTMLBody  string            `json:"html_body,omitempty"`
	PlainBody string            `json:"plain_body,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type postalSendResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// Send implements sending.Transport.
func (s *Postal) Send(ctx context.Context, msg *domain.Message) (string, error) {
	if s.serverURL == "" {
		return "", fmt.Errorf("postal server url not configured")
	}
	req := postalMessageRequest{
		To:        formatted(msg.To),
		Cc:        formatted(msg.Cc),
		Bcc:       emails(msg.Bcc),
		From:      msg.From.String(),
		Subject:   msg.Subject,
		HTMLBody:  msg.HTMLBody,
		PlainBody: msg.TextBody,
		Headers:   msg.ExtraHeaders(),
	}
	if msg.ReplyTo != nil {
		req.ReplyTo = msg.ReplyTo.String()
	}

	_, body, err := postJSON(ctx, s.client, domain.ProviderPostal, s.serverURL+"/api/v1/send/message", req, map[string]string{
		"X-Server-API-Key": s.apiKey,
	})
	if err != nil {
		return "", err
	}
	var result postalSendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode postal response: %w", err)
	}
	// Postal answers 200 with status "error" for rejected messages.
	if result.Status != "success" {
		return "", fmt.Errorf("postal error: %s", strings.TrimSpace(string(result.Data)))
	}
	return "", nil
}

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

// Postmark sends through the single-email API.
type Postmark struct {
	serverToken string
	baseURL     string
	client      httpretry.HTTPDoer
}

// NewPostmark creates a Postmark transport.
func NewPostmark(serverToken, baseURL string, client httpretry.HTTPDoer) *Postmark {
	if baseURL == "" {
		baseURL = postmarkBaseURL
	}
	return &Postmark{serverToken: serverToken, baseURL: strings.TrimRight(baseURL, "/"), client: defaultClient(client)}
}

// Name implements sending.Transport.
func (s *Postmark) Name() domain.Provider { return domain.ProviderPostmark }

type postmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type postmarkEmail struct {
	From     string           `json:"From"`
	To       string           `json:"To"`
	Cc       string           `json:"Cc,omitempty"`
	Bcc      string           `json:"Bcc,omitempty"`
	ReplyTo  string           `json:"ReplyTo,omitempty"`
	Subject  string           `json:"Subject"`
	HTMLBody string           `json:"HtmlBody,omitempty"`
	TextBody string           `json:"TextBody,omitempty"`
	Headers  []postmarkHeader `json:"Headers,omitempty"`
}

type postmarkResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send implements sending.Transport and returns Postmark's MessageID.
func (s *Postmark) Send(ctx context.Context, msg *domain.Message) (string, error) {
	email := postmarkEmail{
		From:     msg.From.String(),
		To:       strings.Join(formatted(msg.To), ","),
		Cc:       strings.Join(formatted(msg.Cc), ","),
		Bcc:      strings.Join(emails(msg.Bcc), ","),
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	}
	if msg.ReplyTo != nil {
		email.ReplyTo = msg.ReplyTo.String()
	}
	for k, v := range msg.ExtraHeaders() {
		email.Headers = append(email.Headers, postmarkHeader{Name: k, Value: v})
	}

	_, body, err := postJSON(ctx, s.client, domain.ProviderPostmark, s.baseURL+"/email", email, map[string]string{
		"X-Postmark-Server-Token": s.serverToken,
	})
	if err != nil {
		return "", err
	}
	var result postmarkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode postmark response: %w", err)
	}
	if result.ErrorCode != 0 {
		return "", fmt.Errorf("postmark error %d: %s", result.ErrorCode, result.Message)
	}
	return result.MessageID, nil
}

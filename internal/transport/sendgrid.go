package transport

import (
	"context"
	"strings"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
)

const sendGridBaseURL = "https://api.sendgrid.com/v3"

// SendGrid sends through the v3 Mail Send API.
type SendGrid struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewSendGrid creates a SendGrid transport. Empty baseURL uses the public API.
func NewSendGrid(apiKey, baseURL string, client httpretry.HTTPDoer) *SendGrid {
	if baseURL == "" {
		baseURL = sendGridBaseURL
	}
	return &SendGrid{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: defaultClient(client)}
}

// Name implements sending.Transport.
func (s *SendGrid) Name() domain.Provider { return domain.ProviderSendGrid }

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To  []sendGridAddress `json:"to"`
	Cc  []sendGridAddress `json:"cc,omitempty"`
	Bcc []sendGridAddress `json:"bcc,omitempty"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	ReplyTo          *sendGridAddress          `json:"reply_to,omitempty"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	Headers          map[string]string         `json:"headers,omitempty"`
}

func sendGridAddresses(list []domain.Address) []sendGridAddress {
	if len(list) == 0 {
		return nil
	}
	out := make([]sendGridAddress, 0, len(list))
	for _, a := range list {
		out = append(out, sendGridAddress{Email: a.Email, Name: a.Name})
	}
	return out
}

// Send implements sending.Transport and returns the X-Message-Id SendGrid
// assigns. Webhook sg_message_id values start with it.
func (s *SendGrid) Send(ctx context.Context, msg *domain.Message) (string, error) {
	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{
			To:  sendGridAddresses(msg.To),
			Cc:  sendGridAddresses(msg.Cc),
			Bcc: sendGridAddresses(msg.Bcc),
		}},
		From:    sendGridAddress{Email: msg.From.Email, Name: msg.From.Name},
		Subject: msg.Subject,
		Headers: msg.ExtraHeaders(),
	}
	if msg.ReplyTo != nil {
		mail.ReplyTo = &sendGridAddress{Email: msg.ReplyTo.Email, Name: msg.ReplyTo.Name}
	}
	// text/plain must precede text/html.
	if msg.TextBody != "" {
		mail.Content = append(mail.Content, sendGridContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		mail.Content = append(mail.Content, sendGridContent{Type: "text/html", Value: msg.HTMLBody})
	}

	resp, _, err := postJSON(ctx, s.client, domain.ProviderSendGrid, s.baseURL+"/mail/send", mail, map[string]string{
		"Authorization": "Bearer " + s.apiKey,
	})
	if err != nil {
		return "", err
	}
	return resp.Header.Get("X-Message-Id"), nil
}

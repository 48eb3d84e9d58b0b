package transport

import (
	"context"

	"github.com/ignite/email-tracker/internal/config"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
	"github.com/ignite/email-tracker/internal/service/sending"
)

// FromConfig builds a transport for every provider that has sending
// credentials. SES is built whenever the provider is enabled since it can
// use the default AWS credential chain.
func FromConfig(ctx context.Context, cfg *config.Config, client httpretry.HTTPDoer) ([]sending.Transport, error) {
	p := cfg.Providers
	var out []sending.Transport

	if p.SES.Enabled {
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		out = append(out, NewSESFromConfig(awsCfg))
	}
	if p.Resend.APIKey != "" {
		out = append(out, NewResend(p.Resend.APIKey, p.Resend.BaseURL, client))
	}
	if p.Postal.ServerURL != "" && p.Postal.APIKey != "" {
		out = append(out, NewPostal(p.Postal.ServerURL, p.Postal.APIKey, client))
	}
	if p.Mailgun.APIKey != "" && p.Mailgun.Domain != "" {
		out = append(out, NewMailgun(p.Mailgun.APIKey, p.Mailgun.Domain, p.Mailgun.BaseURL, client))
	}
	if p.SendGrid.APIKey != "" {
		out = append(out, NewSendGrid(p.SendGrid.APIKey, p.SendGrid.BaseURL, client))
	}
	if p.Postmark.ServerToken != "" {
		out = append(out, NewPostmark(p.Postmark.ServerToken, p.Postmark.BaseURL, client))
	}
	if p.SMTP.Host != "" {
		out = append(out, NewSMTPFromConfig(p.SMTP))
	}
	return out, nil
}

package domain

// Provider names an email service provider. The six built-in names are
// constants; custom providers use any other lowercase name.
type Provider string

const (
	ProviderSES      Provider = "ses"
	ProviderResend   Provider = "resend"
	ProviderPostal   Provider = "postal"
	ProviderMailgun  Provider = "mailgun"
	ProviderSendGrid Provider = "sendgrid"
	ProviderPostmark Provider = "postmark"

	// ProviderSMTP sends through a plain relay and has no webhook handler.
	ProviderSMTP Provider = "smtp"
)

// BuiltinProviders lists the providers shipped with the tracker.
var BuiltinProviders = []Provider{
	ProviderSES,
	ProviderResend,
	ProviderPostal,
	ProviderMailgun,
	ProviderSendGrid,
	ProviderPostmark,
}

func (p Provider) String() string { return string(p) }

package domain

import (
	"net/mail"
	"strings"
)

// Address is a single mailbox.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// String formats the address for a header. Non-ASCII display names are
// RFC 2047 encoded.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// Message is an outbound email handed to the send pipeline.
type Message struct {
	From     Address           `json:"from"`
	To       []Address         `json:"to"`
	Cc       []Address         `json:"cc,omitempty"`
	Bcc      []Address         `json:"bcc,omitempty"`
	ReplyTo  *Address          `json:"reply_to,omitempty"`
	Subject  string            `json:"subject"`
	HTMLBody string            `json:"html_body,omitempty"`
	TextBody string            `json:"text_body,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// SetHeader sets a header, allocating the map on first use.
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// Header returns a header value, matching the key case-insensitively.
func (m *Message) Header(key string) string {
	for k, v := range m.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Recipients returns every To, Cc and Bcc address.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	for _, list := range [][]Address{m.To, m.Cc, m.Bcc} {
		for _, a := range list {
			out = append(out, a.Email)
		}
	}
	return out
}

// ExtraHeaders returns the headers a transport must forward to the provider:
// X- prefixed headers plus the List-Unsubscribe pair.
func (m *Message) ExtraHeaders() map[string]string {
	out := make(map[string]string)
	for k, v := range m.Headers {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-") || strings.HasPrefix(lk, "list-unsubscribe") {
			out[k] = v
		}
	}
	return out
}

// Header names the tracker relies on.
const (
	HeaderMessageID           = "X-Message-ID"
	HeaderListUnsubscribe     = "List-Unsubscribe"
	HeaderListUnsubscribePost = "List-Unsubscribe-Post"
	HeaderSESConfigurationSet = "X-SES-CONFIGURATION-SET"
)

// TrackingOptions selects which tracking features apply to one send.
type TrackingOptions struct {
	Opens      bool `json:"opens" yaml:"opens"`
	Links      bool `json:"links" yaml:"links"`
	Bounces    bool `json:"bounces" yaml:"bounces"`
	Complaints bool `json:"complaints" yaml:"complaints"`
	Deliveries bool `json:"deliveries" yaml:"deliveries"`
}

// AllTracking enables every tracking feature.
func AllTracking() TrackingOptions {
	return TrackingOptions{Opens: true, Links: true, Bounces: true, Complaints: true, Deliveries: true}
}

// EnableAll turns every tracking feature on.
func (t *TrackingOptions) EnableAll() { *t = AllTracking() }

// DisableAll turns every tracking feature off.
func (t *TrackingOptions) DisableAll() { *t = TrackingOptions{} }

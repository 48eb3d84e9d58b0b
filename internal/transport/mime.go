package transport

import (
	"bytes"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/ignite/email-tracker/internal/domain"
)

// newMIMEMessage builds a gomail message carrying every header on msg.
func newMIMEMessage(msg *domain.Message) *gomail.Message {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetAddressHeader("From", msg.From.Email, msg.From.Name)
	m.SetHeader("To", addressHeader(m, msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", addressHeader(m, msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", emails(msg.Bcc)...)
	}
	if msg.ReplyTo != nil {
		m.SetAddressHeader("Reply-To", msg.ReplyTo.Email, msg.ReplyTo.Name)
	}
	m.SetHeader("Subject", msg.Subject)
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}
	return m
}

func addressHeader(m *gomail.Message, list []domain.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, m.FormatAddress(a.Email, a.Name))
	}
	return out
}

// rawMIME renders msg as an RFC 5322 message. Bcc is left out of the headers.
func rawMIME(msg *domain.Message) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := newMIMEMessage(msg).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render mime: %w", err)
	}
	return buf.Bytes(), nil
}

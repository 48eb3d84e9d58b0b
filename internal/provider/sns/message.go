// Package sns parses and authenticates Amazon SNS HTTP deliveries.
package sns

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SNS message types.
const (
	TypeNotification             = "Notification"
	TypeSubscriptionConfirmation = "SubscriptionConfirmation"
	TypeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

var (
	ErrMissingField                = errors.New("sns: missing required field")
	ErrUnsupportedSignatureVersion = errors.New("sns: unsupported signature version")
	ErrInvalidCertURL              = errors.New("sns: invalid signing certificate url")
	ErrInvalidSignature            = errors.New("sns: signature verification failed")
)

// Message is the JSON envelope SNS posts to HTTP subscribers.
type Message struct {
	Type             string `json:"Type"`
	MessageID        string `json:"MessageId"`
	Token            string `json:"Token,omitempty"`
	TopicArn         string `json:"TopicArn"`
	Subject          string `json:"Subject,omitempty"`
	Message          string `json:"Message"`
	Timestamp        string `json:"Timestamp"`
	SignatureVersion string `json:"SignatureVersion"`
	Signature        string `json:"Signature"`
	SigningCertURL   string `json:"SigningCertURL"`
	SubscribeURL     string `json:"SubscribeURL,omitempty"`
	UnsubscribeURL   string `json:"UnsubscribeURL,omitempty"`
}

// Parse decodes an SNS envelope.
func Parse(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("sns: decode envelope: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("%w: Type", ErrMissingField)
	}
	return &m, nil
}

// IsSubscriptionConfirmation reports whether SNS is asking to confirm a subscription.
func (m *Message) IsSubscriptionConfirmation() bool {
	return m.Type == TypeSubscriptionConfirmation
}

// IsTopicValidation reports whether the message is the test notification SES
// sends when a topic is attached to an identity.
func (m *Message) IsTopicValidation() bool {
	return m.Type == TypeNotification && strings.Contains(m.Message, "Successfully validated SNS topic")
}

// StringToSign builds the canonical string the signature covers.
func (m *Message) StringToSign() (string, error) {
	var fields [][2]string
	switch m.Type {
	case TypeNotification:
		fields = [][2]string{
			{"Message", m.Message},
			{"MessageId", m.MessageID},
		}
		if m.Subject != "" {
			fields = append(fields, [2]string{"Subject", m.Subject})
		}
		fields = append(fields,
			[2]string{"Timestamp", m.Timestamp},
			[2]string{"TopicArn", m.TopicArn},
			[2]string{"Type", m.Type},
		)
	case TypeSubscriptionConfirmation, TypeUnsubscribeConfirmation:
		fields = [][2]string{
			{"Message", m.Message},
			{"MessageId", m.MessageID},
			{"SubscribeURL", m.SubscribeURL},
			{"Timestamp", m.Timestamp},
			{"Token", m.Token},
			{"TopicArn", m.TopicArn},
			{"Type", m.Type},
		}
	default:
		return "", fmt.Errorf("sns: unknown message type %q", m.Type)
	}

	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f[0])
		b.WriteByte('\n')
		b.WriteString(f[1])
		b.WriteByte('\n')
	}
	return b.String(), nil
}

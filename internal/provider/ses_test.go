package provider

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/provider/sns"
)

const sesBounceContent = `{
	"notificationType": "Bounce",
	"mail": {
		"messageId": "0100018e-ses-bounce",
		"timestamp": "2025-03-01T11:00:00.000Z",
		"destination": ["dest@example.com"]
	},
	"bounce": {
		"bounceType": "Transient",
		"bounceSubType": "MailboxFull",
		"bouncedRecipients": [{"emailAddress": "kim@example.com"}],
		"timestamp": "2025-03-01T11:00:05.000Z"
	}
}`

func snsEnvelope(t *testing.T, m sns.Message) string {
	t.Helper()
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

func sesNotificationEnvelope(t *testing.T, content string) sns.Message {
	t.Helper()
	return sns.Message{
		Type:             sns.TypeNotification,
		MessageID:        "f3c3e6a0-1d2f-5a0b-9b77-5f9e2f1c0a11",
		TopicArn:         "arn:aws:sns:us-east-1:123456789012:ses",
		Message:          content,
		Timestamp:        "2025-03-01T11:00:06.000Z",
		SignatureVersion: "2",
		SigningCertURL:   "https://sns.us-east-1.amazonaws.com/SimpleNotificationService-test.pem",
	}
}

type fixedCerts struct{ cert *x509.Certificate }

func (f fixedCerts) Certificate(context.Context, string) (*x509.Certificate, error) {
	return f.cert, nil
}

func snsSigner(t *testing.T) (*rsa.PrivateKey, *sns.Verifier) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "sns.amazonaws.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return priv, sns.NewVerifier(fixedCerts{cert})
}

func signEnvelope(t *testing.T, priv *rsa.PrivateKey, m *sns.Message) {
	t.Helper()
	payload, err := m.StringToSign()
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, sum[:])
	require.NoError(t, err)
	m.Signature = base64.StdEncoding.EncodeToString(sig)
}

func TestSES_Verify(t *testing.T) {
	priv, verifier := snsSigner(t)
	s := NewSES(&fakeProc{}, verifier, nil, false)

	m := sesNotificationEnvelope(t, sesBounceContent)
	signEnvelope(t, priv, &m)
	assert.True(t, s.Verify(newTestRequest(snsEnvelope(t, m), "", nil)))

	m.Message = `{"notificationType":"Delivery"}`
	assert.False(t, s.Verify(newTestRequest(snsEnvelope(t, m), "", nil)), "tampered message")

	assert.False(t, s.Verify(newTestRequest(sesBounceContent, "", nil)), "raw SES content is not accepted with validation on")
}

func TestSES_VerifyDisabled(t *testing.T) {
	assert.True(t, NewSES(&fakeProc{}, nil, nil, false).Verify(newTestRequest(sesBounceContent, "", nil)))
	assert.False(t, NewSES(&fakeProc{}, nil, nil, true).Verify(newTestRequest(sesBounceContent, "", nil)))
}

func TestSES_HandleBounce(t *testing.T) {
	proc := &fakeProc{}
	s := NewSES(proc, nil, nil, false)

	body := snsEnvelope(t, sesNotificationEnvelope(t, sesBounceContent))
	resp := s.Handle(context.Background(), newTestRequest(body, "", nil))
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Bounce processed", resp.Body["message"])

	got := proc.applied()
	require.Len(t, got, 1)
	ev := got[0]
	assert.Equal(t, "0100018e-ses-bounce", ev.MessageID)
	assert.Equal(t, "kim@example.com", ev.Email)
	assert.Equal(t, domain.ProviderSES, ev.Provider)
	assert.Equal(t, domain.EventBounced, ev.EventType)
	assert.Equal(t, domain.BounceTransient, ev.BounceType)
	require.NotNil(t, ev.Timestamp)
	assert.Equal(t, time.Date(2025, 3, 1, 11, 0, 5, 0, time.UTC), *ev.Timestamp)
}

func TestSES_HandleRawContent(t *testing.T) {
	proc := &fakeProc{}
	s := NewSES(proc, nil, nil, false)

	complaint := `{"mail":{"messageId":"m-c","destination":["dest@example.com"]},"complaint":{"complaintFeedbackType":"abuse","complainedRecipients":[],"timestamp":"2025-03-01T11:00:00Z"}}`
	resp := s.Handle(context.Background(), newTestRequest(complaint, "", nil))
	assert.Equal(t, "Complaint processed", resp.Body["message"])

	got := proc.applied()
	require.Len(t, got, 1)
	assert.Equal(t, "dest@example.com", got[0].Email)
	assert.Equal(t, domain.ComplaintAbuse, got[0].ComplaintType)
}

func TestSES_HandleRouteHint(t *testing.T) {
	proc := &fakeProc{}
	s := NewSES(proc, nil, nil, false)

	delivery := `{"mail":{"messageId":"m-d","destination":["l@example.com"]},"delivery":{"timestamp":"2025-03-01T11:00:00Z"}}`
	resp := s.Handle(context.Background(), newTestRequest(delivery, "delivery", nil))
	assert.Equal(t, "Delivery processed", resp.Body["message"])
	require.Len(t, proc.applied(), 1)
	assert.Equal(t, domain.EventDelivered, proc.applied()[0].EventType)
}

func TestSES_HandleUnknownEvent(t *testing.T) {
	s := NewSES(&fakeProc{}, nil, nil, false)

	body := snsEnvelope(t, sesNotificationEnvelope(t, `{"notificationType":"Received","mail":{"messageId":"m"}}`))
	resp := s.Handle(context.Background(), newTestRequest(body, "", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Unknown event type", resp.Body["error"])
}

func TestSES_HandleTopicValidation(t *testing.T) {
	proc := &fakeProc{}
	s := NewSES(proc, nil, nil, false)

	body := snsEnvelope(t, sesNotificationEnvelope(t, "Successfully validated SNS topic for Amazon SES event publishing."))
	resp := s.Handle(context.Background(), newTestRequest(body, "", nil))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Topic validated", resp.Body["message"])
	assert.Empty(t, proc.applied())
}

func TestSES_HandleSubscriptionConfirmation(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := NewSES(&fakeProc{}, nil, srv.Client(), false)
	m := sns.Message{
		Type:         sns.TypeSubscriptionConfirmation,
		MessageID:    "sub-1",
		TopicArn:     "arn:aws:sns:us-east-1:123456789012:ses",
		Token:        "token",
		SubscribeURL: srv.URL + "/confirm",
		Message:      "You have chosen to subscribe to the topic",
	}

	resp := s.Handle(context.Background(), newTestRequest(snsEnvelope(t, m), "", nil))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Subscription confirmed", resp.Body["message"])

	status = http.StatusForbidden
	resp = s.Handle(context.Background(), newTestRequest(snsEnvelope(t, m), "", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestSES_HandleMissingMessageID(t *testing.T) {
	s := NewSES(&fakeProc{}, nil, nil, false)
	resp := s.Handle(context.Background(), newTestRequest(`{"mail":{},"bounce":{"bounceType":"Permanent"}}`, "", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Missing message ID", resp.Body["error"])
}

func TestSES_HandleInvalidJSON(t *testing.T) {
	s := NewSES(&fakeProc{}, nil, nil, false)
	resp := s.Handle(context.Background(), newTestRequest(`{"foo":1}`, "", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Invalid payload", resp.Body["error"])
}

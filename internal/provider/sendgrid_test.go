package provider

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-tracker/internal/domain"
)

func sendgridKeyPair(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return priv, base64.StdEncoding.EncodeToString(der)
}

func sendgridHeaders(t *testing.T, priv *ecdsa.PrivateKey, ts time.Time, body string) map[string]string {
	t.Helper()
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	digest := sha256.Sum256([]byte(timestamp + body))
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	return map[string]string{
		sendgridSignatureHeader: base64.StdEncoding.EncodeToString(sig),
		sendgridTimestampHeader: timestamp,
	}
}

const sendgridBatch = `[
	{"event":"bounce","email":"dan@example.com","timestamp":1740830000,"sg_message_id":"14c5d75ce93.dfd.64b469.filter0001p3las1-16816-5A023E0B-1.0","type":"bounce","reason":"550 5.1.1 unknown user"},
	{"event":"open","email":"dan@example.com","timestamp":1740830001,"sg_message_id":"x.filter1"},
	{"event":"delivered","email":"erin@example.com","timestamp":1740830002},
	{"event":"dropped","email":"frank@example.com","timestamp":1740830003,"smtp-id":"<frank-1@example.com>","reason":"Bounced Address"}
]`

func TestSendGrid_Verify(t *testing.T) {
	priv, pub := sendgridKeyPair(t)
	s := NewSendGrid(&fakeProc{}, pub, false)
	s.now = func() time.Time { return testNow }

	assert.True(t, s.Verify(newTestRequest(sendgridBatch, "", sendgridHeaders(t, priv, testNow, sendgridBatch))))

	headers := sendgridHeaders(t, priv, testNow, sendgridBatch)
	assert.False(t, s.Verify(newTestRequest(sendgridBatch[:len(sendgridBatch)-1], "", headers)), "tampered body")

	stale := sendgridHeaders(t, priv, testNow.Add(-301*time.Second), sendgridBatch)
	assert.False(t, s.Verify(newTestRequest(sendgridBatch, "", stale)))

	other, _ := sendgridKeyPair(t)
	assert.False(t, s.Verify(newTestRequest(sendgridBatch, "", sendgridHeaders(t, other, testNow, sendgridBatch))))

	assert.False(t, s.Verify(newTestRequest(sendgridBatch, "", nil)))
}

func TestSendGrid_VerifyPEMKey(t *testing.T) {
	priv, pub := sendgridKeyPair(t)
	pem := "-----BEGIN PUBLIC KEY-----\n" + pub + "\n-----END PUBLIC KEY-----\n"
	s := NewSendGrid(&fakeProc{}, pem, false)
	s.now = func() time.Time { return testNow }

	assert.True(t, s.Verify(newTestRequest(sendgridBatch, "", sendgridHeaders(t, priv, testNow, sendgridBatch))))
}

func TestSendGridKeyBase64(t *testing.T) {
	_, pub := sendgridKeyPair(t)
	pemKey := "-----BEGIN PUBLIC KEY-----\n" + pub + "\n-----END PUBLIC KEY-----\n"

	assert.Equal(t, pub, sendgridKeyBase64(pub))
	assert.Equal(t, pub, sendgridKeyBase64("  "+pub+"\n"))
	assert.Equal(t, pub, sendgridKeyBase64(pemKey))
}

func TestSendGrid_VerifyMalformedSignature(t *testing.T) {
	_, pub := sendgridKeyPair(t)
	s := NewSendGrid(&fakeProc{}, pub, false)
	s.now = func() time.Time { return testNow }

	headers := map[string]string{
		sendgridSignatureHeader: "%%%not-base64%%%",
		sendgridTimestampHeader: strconv.FormatInt(testNow.Unix(), 10),
	}
	assert.False(t, s.Verify(newTestRequest(sendgridBatch, "", headers)))
}

func TestSendGrid_VerifyInvalidKey(t *testing.T) {
	s := NewSendGrid(&fakeProc{}, "not-a-key", false)
	assert.False(t, s.Verify(newTestRequest(sendgridBatch, "", nil)))
}

func TestSendGrid_HandleBatch(t *testing.T) {
	proc := &fakeProc{}
	s := NewSendGrid(proc, "", false)

	resp := s.Handle(context.Background(), newTestRequest(sendgridBatch, "", nil))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, true, resp.Body["success"])
	assert.Equal(t, 3, resp.Body["processed"])
	assert.Equal(t, 1, resp.Body["errors"])
	assert.Equal(t, "Processed 3 events, 1 errors", resp.Body["message"])

	got := proc.applied()
	require.Len(t, got, 3)

	assert.Equal(t, "14c5d75ce93", got[0].MessageID)
	assert.Equal(t, domain.EventBounced, got[0].EventType)
	assert.Equal(t, domain.BouncePermanent, got[0].BounceType)

	// delivered without any id is the failing event
	assert.Equal(t, domain.EventDelivered, got[1].EventType)
	assert.Empty(t, got[1].MessageID)

	assert.Equal(t, "frank-1@example.com", got[2].MessageID)
	assert.Equal(t, domain.EventRejected, got[2].EventType)
	assert.Equal(t, domain.BouncePermanent, got[2].BounceType)
}

func TestSendGrid_HandleSingleObject(t *testing.T) {
	proc := &fakeProc{}
	s := NewSendGrid(proc, "", false)

	resp := s.Handle(context.Background(), newTestRequest(`{"event":"spamreport","email":"g@example.com","sg_message_id":"abc.filter0"}`, "", nil))
	assert.Equal(t, "Processed 1 events", resp.Body["message"])
	require.Len(t, proc.applied(), 1)
	assert.Equal(t, domain.ComplaintAbuse, proc.applied()[0].ComplaintType)
}

func TestSendGrid_HandleInvalid(t *testing.T) {
	resp := NewSendGrid(&fakeProc{}, "", false).Handle(context.Background(), newTestRequest(`"nope"`, "", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestSendGrid_Normalize(t *testing.T) {
	ev, err := NewSendGrid(&fakeProc{}, "", false).Normalize(newTestRequest(sendgridBatch, "", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.EventBounced, ev.EventType)
	assert.Equal(t, "dan@example.com", ev.Email)
	require.NotNil(t, ev.Timestamp)
	assert.Equal(t, int64(1740830000), ev.Timestamp.Unix())
}

func TestSendGridMessageID(t *testing.T) {
	tests := []struct {
		sg, smtp, want string
	}{
		{"14c5d75ce93.dfd.64b469.filter0001p3las1-16816-5A023E0B-1.0", "", "14c5d75ce93"},
		{"W6A2jWZ3SwK2b6DHxdMiQw.recvd-5f8c8c8c6-abcde-1-5F5F5F5F-1.0", "", "W6A2jWZ3SwK2b6DHxdMiQw"},
		{"filter0001p3las1-16816-5A023E0B-1", "", "16816-5A023E0B-1"},
		{"plain-id", "", "plain-id"},
		{"", "<abc@example.com>", "abc@example.com"},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sendgridMessageID(tt.sg, tt.smtp), tt.sg)
	}
}

func TestSendGridBounceType(t *testing.T) {
	tests := []struct {
		name string
		ev   sendgridEvent
		want domain.BounceType
	}{
		{"bounce type", sendgridEvent{Type: "bounce"}, domain.BouncePermanent},
		{"blocked", sendgridEvent{Type: "blocked"}, domain.BounceTransient},
		{"expired", sendgridEvent{Type: "expired"}, domain.BounceTransient},
		{"invalid address classification", sendgridEvent{Classification: "Invalid Address"}, domain.BouncePermanent},
		{"technical failure", sendgridEvent{Classification: "Technical Failure"}, domain.BounceTransient},
		{"reason unknown user", sendgridEvent{Reason: "550 Unknown User"}, domain.BouncePermanent},
		{"reason rate limit", sendgridEvent{Reason: "421 Rate limit reached"}, domain.BounceTransient},
		{"default", sendgridEvent{}, domain.BouncePermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sendgridBounceType(tt.ev))
		})
	}
}

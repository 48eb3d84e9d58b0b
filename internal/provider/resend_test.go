package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-tracker/internal/domain"
)

var resendKey = []byte("resend-signing-key-for-tests")

func resendSecret() string {
	return "whsec_" + base64.StdEncoding.EncodeToString(resendKey)
}

func resendHeaders(id string, ts time.Time, body string, key []byte) map[string]string {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "." + body))
	return map[string]string{
		svixID:        id,
		svixTimestamp: timestamp,
		svixSignature: "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}
}

const resendBounce = `{
	"type": "email.bounced",
	"created_at": "2025-03-01T11:59:00.000Z",
	"data": {
		"email_id": "4ef9a417-02e9-4d39-ad75-9611e0fcc33c",
		"to": ["bob@example.com", "carol@example.com"],
		"created_at": "2025-03-01T11:58:30.123Z"
	}
}`

func newTestResend(proc Processor) *Resend {
	r := NewResend(proc, resendSecret(), false)
	r.now = func() time.Time { return testNow }
	return r
}

func TestResend_Verify(t *testing.T) {
	r := newTestResend(&fakeProc{})

	valid := resendHeaders("msg_1", testNow, resendBounce, resendKey)
	assert.True(t, r.Verify(newTestRequest(resendBounce, "", valid)))

	rotated := resendHeaders("msg_1", testNow, resendBounce, resendKey)
	rotated[svixSignature] = "v1,bm90LXRoZS1zaWduYXR1cmU= " + rotated[svixSignature]
	assert.True(t, r.Verify(newTestRequest(resendBounce, "", rotated)), "any matching signature is accepted")

	wrongKey := resendHeaders("msg_1", testNow, resendBounce, []byte("other"))
	assert.False(t, r.Verify(newTestRequest(resendBounce, "", wrongKey)))

	tampered := resendHeaders("msg_1", testNow, resendBounce, resendKey)
	assert.False(t, r.Verify(newTestRequest(resendBounce+" ", "", tampered)))

	stale := resendHeaders("msg_1", testNow.Add(-10*time.Minute), resendBounce, resendKey)
	assert.False(t, r.Verify(newTestRequest(resendBounce, "", stale)))

	missing := resendHeaders("msg_1", testNow, resendBounce, resendKey)
	delete(missing, svixID)
	assert.False(t, r.Verify(newTestRequest(resendBounce, "", missing)))
}

func TestResend_VerifyUnprefixedSecret(t *testing.T) {
	r := NewResend(&fakeProc{}, base64.StdEncoding.EncodeToString(resendKey), false)
	r.now = func() time.Time { return testNow }

	headers := resendHeaders("msg_2", testNow, resendBounce, resendKey)
	assert.True(t, r.Verify(newTestRequest(resendBounce, "", headers)))
}

func TestResend_VerifySkipsOtherSchemes(t *testing.T) {
	r := newTestResend(&fakeProc{})

	headers := resendHeaders("msg_3", testNow, resendBounce, resendKey)
	_, sig, _ := strings.Cut(headers[svixSignature], ",")
	headers[svixSignature] = "v1a," + sig
	assert.False(t, r.Verify(newTestRequest(resendBounce, "", headers)), "only v1 entries are compared")
}

func TestResend_VerifyBadSecret(t *testing.T) {
	r := NewResend(&fakeProc{}, "whsec_***not-base64***", false)
	r.now = func() time.Time { return testNow }
	headers := resendHeaders("msg_1", testNow, resendBounce, resendKey)
	assert.False(t, r.Verify(newTestRequest(resendBounce, "", headers)))
}

func TestResend_Normalize(t *testing.T) {
	r := newTestResend(&fakeProc{})
	ev, err := r.Normalize(newTestRequest(resendBounce, "", nil))
	require.NoError(t, err)

	assert.Equal(t, "4ef9a417-02e9-4d39-ad75-9611e0fcc33c", ev.MessageID)
	assert.Equal(t, "bob@example.com", ev.Email)
	assert.Equal(t, domain.EventBounced, ev.EventType)
	assert.Equal(t, domain.BouncePermanent, ev.BounceType)
	require.NotNil(t, ev.Timestamp)
	assert.Equal(t, time.Date(2025, 3, 1, 11, 58, 30, 123000000, time.UTC), *ev.Timestamp)
}

func TestResend_Handle(t *testing.T) {
	proc := &fakeProc{}
	r := newTestResend(proc)

	resp := r.Handle(context.Background(), newTestRequest(resendBounce, "", nil))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Bounce processed", resp.Body["message"])

	resp = r.Handle(context.Background(), newTestRequest(`{"type":"email.opened","data":{"email_id":"x"}}`, "", nil))
	assert.Equal(t, "Event email.opened acknowledged", resp.Body["message"])

	resp = r.Handle(context.Background(), newTestRequest(`{"type":"contact.created","data":{}}`, "", nil))
	assert.Equal(t, "Event type not tracked", resp.Body["message"])

	resp = r.Handle(context.Background(), newTestRequest(`not json`, "", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	require.Len(t, proc.applied(), 1)
}

package provider

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/service/events"
)

// fakeProc records applied events.
type fakeProc struct {
	mu     sync.Mutex
	events []domain.EmailEventData
	err    error
}

func (f *fakeProc) Apply(_ context.Context, ev domain.EmailEventData) (events.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	res := events.Result{Outcome: events.Processed, EventType: ev.EventType}
	if ev.MessageID == "" {
		return res, events.ErrMissingMessageID
	}
	if f.err != nil {
		return res, &events.ProcessingError{Op: "create", Err: f.err}
	}
	return res, nil
}

func (f *fakeProc) applied() []domain.EmailEventData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.EmailEventData(nil), f.events...)
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRequest(body string, hint string, headers map[string]string) *Request {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &Request{Header: h, Body: []byte(body), EventHint: hint, ReceivedAt: testNow}
}

func TestBase_Unverified(t *testing.T) {
	open := newBase(domain.ProviderPostal, &fakeProc{}, "", false, postalRoutes)
	assert.True(t, open.unverified())

	strict := newBase(domain.ProviderPostal, &fakeProc{}, "", true, postalRoutes)
	assert.False(t, strict.unverified())
}

func TestBase_Fresh(t *testing.T) {
	b := newBase(domain.ProviderMailgun, &fakeProc{}, "k", false, mailgunRoutes)
	b.now = func() time.Time { return testNow }

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"now", 0, true},
		{"at window", -300 * time.Second, true},
		{"stale", -301 * time.Second, false},
		{"future within window", 200 * time.Second, true},
		{"future beyond window", 301 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.fresh(testNow.Add(tt.offset).Unix()))
		})
	}
}

func TestBase_ApplyErrors(t *testing.T) {
	proc := &fakeProc{err: assert.AnError}
	b := newBase(domain.ProviderPostal, proc, "", false, postalRoutes)

	resp := b.apply(context.Background(), domain.EmailEventData{EventType: domain.EventBounced})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Missing message ID", resp.Body["error"])

	resp = b.apply(context.Background(), domain.EmailEventData{MessageID: "m1", EventType: domain.EventBounced})
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "Processing failed", resp.Body["error"])
	assert.Equal(t, "failed", resp.Outcome())
}

func TestResponse_Outcome(t *testing.T) {
	assert.Equal(t, "ok", okResponse("Bounce processed").Outcome())
	assert.Equal(t, "not_tracked", okResponse("Message not tracked").Outcome())
	assert.Equal(t, "rejected", invalidPayload().Outcome())
	assert.True(t, invalidPayload().Failed())
}

func TestRequest_BasicPassword(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"user and password", "Basic dXNlcjp0b2tlbg==", "token", true},
		{"bare token", "Basic dG9rZW4=", "token", true},
		{"empty user", "Basic OnRva2Vu", "token", true},
		{"bearer", "Bearer token", "", false},
		{"bad base64", "Basic !!!", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newTestRequest("{}", "", map[string]string{"Authorization": tt.header})
			got, ok := req.basicPassword()
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlexString(t *testing.T) {
	var p struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
	}
	_, err := decode([]byte(`{"a":"1700000000","b":1700000000.25}`), &p)
	require.NoError(t, err)

	a, ok := p.A.unix()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), a)
	b, ok := p.B.unix()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), b)
}

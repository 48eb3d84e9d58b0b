package provider

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// Request is a raw inbound webhook as seen by a Handler.
type Request struct {
	Header http.Header
	Body   []byte
	// EventHint is the optional {event} path segment.
	EventHint  string
	RemoteIP   string
	ReceivedAt time.Time

	ctx context.Context
}

// NewRequest captures r with an already-read body.
func NewRequest(r *http.Request, body []byte, hint, remoteIP string) *Request {
	return &Request{
		Header:     r.Header.Clone(),
		Body:       body,
		EventHint:  hint,
		RemoteIP:   remoteIP,
		ReceivedAt: time.Now(),
		ctx:        r.Context(),
	}
}

// Context returns the inbound request's context.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// basicPassword extracts the password from a Basic Authorization header.
// Credentials without a colon are treated as a bare token.
func (r *Request) basicPassword() (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return "", false
	}
	creds := string(raw)
	if _, pass, ok := strings.Cut(creds, ":"); ok {
		return pass, true
	}
	return creds, true
}

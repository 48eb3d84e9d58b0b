package mailing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// Unsubscribe URL errors.
var (
	ErrInvalidSignature = errors.New("unsubscribe: invalid signature")
	ErrExpired          = errors.New("unsubscribe: link expired")
)

// Query parameter names.
const (
	ParamEmail     = "email"
	ParamMessageID = "message_id"
	ParamExpires   = "expires"
	ParamSignature = "signature"
)

// UnsubscribeSigner signs unsubscribe URLs with HMAC-SHA256 over the path and
// the sorted query string.
type UnsubscribeSigner struct {
	key      []byte
	endpoint string
	ttl      time.Duration
	now      func() time.Time
}

// NewUnsubscribeSigner creates a signer for the absolute endpoint URL. A zero
// ttl produces links that never expire.
func NewUnsubscribeSigner(key, endpoint string, ttl time.Duration) *UnsubscribeSigner {
	return &UnsubscribeSigner{key: []byte(key), endpoint: endpoint, ttl: ttl, now: time.Now}
}

// URL returns a signed unsubscribe URL for email and messageID.
func (s *UnsubscribeSigner) URL(email, messageID string) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set(ParamEmail, email)
	if messageID != "" {
		q.Set(ParamMessageID, messageID)
	}
	if s.ttl > 0 {
		q.Set(ParamExpires, strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10))
	}
	q.Set(ParamSignature, s.sign(u.Path, q))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks the signature of an inbound request URL and, when the link
// carries an expiry, that it has not passed.
func (s *UnsubscribeSigner) Verify(u *url.URL) error {
	q := u.Query()
	sig := q.Get(ParamSignature)
	if sig == "" || !hmac.Equal([]byte(sig), []byte(s.sign(u.Path, q))) {
		return ErrInvalidSignature
	}
	if exp := q.Get(ParamExpires); exp != "" {
		ts, err := strconv.ParseInt(exp, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		if s.now().Unix() > ts {
			return ErrExpired
		}
	}
	return nil
}

func (s *UnsubscribeSigner) sign(path string, q url.Values) string {
	unsigned := url.Values{}
	for k, v := range q {
		if k != ParamSignature {
			unsigned[k] = v
		}
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(path + "?" + unsigned.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

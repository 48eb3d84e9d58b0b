package sns

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ignite/email-tracker/internal/pkg/httpretry"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

var certHostPattern = regexp.MustCompile(`^sns\.[a-zA-Z0-9\-]{3,}\.amazonaws\.com(\.cn)?$`)

// maxCertBytes bounds the certificate download.
const maxCertBytes = 64 << 10

// ValidateCertURL checks that a signing certificate URL points at an SNS
// endpoint over https.
func ValidateCertURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCertURL, err)
	}
	if u.Scheme != "https" || !certHostPattern.MatchString(u.Hostname()) || !strings.HasSuffix(u.Path, ".pem") {
		return fmt.Errorf("%w: %s", ErrInvalidCertURL, raw)
	}
	return nil
}

// CertSource resolves signing certificates.
type CertSource interface {
	Certificate(ctx context.Context, certURL string) (*x509.Certificate, error)
}

// HTTPCertSource downloads certificates and caches them in memory.
type HTTPCertSource struct {
	client httpretry.HTTPDoer
	cache  *cache.Cache
}

// NewHTTPCertSource creates a CertSource. A nil client gets a retrying default.
func NewHTTPCertSource(client httpretry.HTTPDoer, ttl time.Duration) *HTTPCertSource {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 2)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &HTTPCertSource{client: client, cache: cache.New(ttl, 2*ttl)}
}

// Certificate implements CertSource.
func (s *HTTPCertSource) Certificate(ctx context.Context, certURL string) (*x509.Certificate, error) {
	if err := ValidateCertURL(certURL); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(certURL); ok {
		return cached.(*x509.Certificate), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, fmt.Errorf("sns: build cert request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sns: fetch cert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sns: fetch cert: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCertBytes))
	if err != nil {
		return nil, fmt.Errorf("sns: read cert: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("sns: cert at %s is not PEM", certURL)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("sns: parse cert: %w", err)
	}

	s.cache.SetDefault(certURL, cert)
	logger.Debug("sns signing certificate cached", "url", certURL)
	return cert, nil
}

// Verifier authenticates SNS messages.
type Verifier struct {
	certs CertSource
}

// NewVerifier creates a Verifier backed by certs.
func NewVerifier(certs CertSource) *Verifier {
	return &Verifier{certs: certs}
}

// Verify checks the message signature against its signing certificate.
func (v *Verifier) Verify(ctx context.Context, m *Message) error {
	var (
		hash   crypto.Hash
		digest []byte
	)
	payload, err := m.StringToSign()
	if err != nil {
		return err
	}
	switch m.SignatureVersion {
	case "1":
		sum := sha1.Sum([]byte(payload))
		hash, digest = crypto.SHA1, sum[:]
	case "2":
		sum := sha256.Sum256([]byte(payload))
		hash, digest = crypto.SHA256, sum[:]
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedSignatureVersion, m.SignatureVersion)
	}
	if m.Signature == "" || m.SigningCertURL == "" {
		return fmt.Errorf("%w: Signature", ErrMissingField)
	}

	sig, err := base64.StdEncoding.DecodeString(m.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	cert, err := v.certs.Certificate(ctx, m.SigningCertURL)
	if err != nil {
		return err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: certificate key is not RSA", ErrInvalidSignature)
	}
	if err := rsa.VerifyPKCS1v15(pub, hash, digest, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// ConfirmSubscription visits the SubscribeURL. SNS expects a 200.
func ConfirmSubscription(ctx context.Context, client httpretry.HTTPDoer, m *Message) error {
	if m.SubscribeURL == "" {
		return fmt.Errorf("%w: SubscribeURL", ErrMissingField)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.SubscribeURL, nil)
	if err != nil {
		return fmt.Errorf("sns: build confirm request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sns: confirm subscription: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sns: confirm subscription: status %d", resp.StatusCode)
	}
	return nil
}

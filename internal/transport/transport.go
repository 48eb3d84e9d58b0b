// Package transport delivers tracked messages through each ESP's API. Every
// transport forwards the message's tracking headers (X-Message-ID, the
// List-Unsubscribe pair and any other X- header) so webhooks can be
// correlated back to the send record.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/httpretry"
)

const defaultTimeout = 60 * time.Second

// APIError is a non-2xx response from a provider API.
type APIError struct {
	Provider domain.Provider
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.Status, e.Body)
}

func defaultClient(c httpretry.HTTPDoer) httpretry.HTTPDoer {
	if c == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return c
}

// doRequest sends req and returns the body of a 2xx response.
func doRequest(client httpretry.HTTPDoer, provider domain.Provider, req *http.Request) (*http.Response, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return resp, body, &APIError{Provider: provider, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, body, nil
}

// postJSON marshals payload and posts it to endpoint.
func postJSON(ctx context.Context, client httpretry.HTTPDoer, provider domain.Provider, endpoint string, payload interface{}, headers map[string]string) (*http.Response, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return doRequest(client, provider, req)
}

func emails(list []domain.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Email)
	}
	return out
}

func formatted(list []domain.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.String())
	}
	return out
}

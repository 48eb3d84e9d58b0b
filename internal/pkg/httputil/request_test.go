package httputil

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.9"},
		{"forwarded single", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "10.0.0.2:1234", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadBody_Limit(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("a", 20)))
	if _, err := ReadBody(w, r, 10); err == nil {
		t.Fatal("ReadBody() expected error for oversized body")
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader("hello"))
	body, err := ReadBody(w, r, 10)
	if err != nil {
		t.Fatalf("ReadBody() error = %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("ReadBody() = %q, want hello", body)
	}
}

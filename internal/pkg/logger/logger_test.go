package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_RedactsEmailFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "TEST")

	l.Info("bounce recorded", "email", "john.doe@example.com", "note", "reply to alice@example.org")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "bounce recorded", entry["msg"])
	assert.Equal(t, "TEST", entry["component"])
	assert.Equal(t, "jo***@example.com", entry["email"])
	assert.Equal(t, "reply to al***@example.org", entry["note"])
}

func TestLogger_RedactionDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "TEST")
	l.SetRedactPII(false)

	l.Warn("raw", "recipient", "ab@example.com", "error", errors.New("boom"))

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ab@example.com", entry["recipient"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "TEST")

	l.log(DEBUG, "hidden")
	assert.Zero(t, buf.Len())

	l.SetLevel(DEBUG)
	l.log(DEBUG, "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

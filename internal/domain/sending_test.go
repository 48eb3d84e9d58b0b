package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress_String(t *testing.T) {
	cases := []struct {
		name string
		addr Address
		want string
	}{
		{"bare", Address{Email: "news@example.com"}, "news@example.com"},
		{"ascii name", Address{Email: "news@example.com", Name: "News"}, `"News" <news@example.com>`},
		{"quoted name", Address{Email: "news@example.com", Name: `The "Weekly" News`}, `"The \"Weekly\" News" <news@example.com>`},
		{"non-ascii name", Address{Email: "jose@example.com", Name: "José"}, "=?utf-8?q?Jos=C3=A9?= <jose@example.com>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.addr.String())
		})
	}
}

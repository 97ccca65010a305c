package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostAllowlist(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		al := newHostAllowlist([]string{"www.datpiff.com", "DatPiff.com"})
		require.NotNil(t, al)
		assert.True(t, al.Allows("www.datpiff.com"))
		assert.True(t, al.Allows("datpiff.com"))
		assert.False(t, al.Allows("cdn.datpiff.com"), "subdomains must not match exact entries")
		assert.False(t, al.Allows("example.com"))
		assert.False(t, al.Allows(""))
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		al := newHostAllowlist([]string{"*.datpiff.com", ".example.org"})
		require.NotNil(t, al)
		cases := []struct {
			host    string
			allowed bool
		}{
			{"www.datpiff.com", true},
			{"a.b.datpiff.com", true},
			{"datpiff.com", true},
			{"sub.example.org", true},
			{"notdatpiff.com", false},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.allowed, al.Allows(tc.host), tc.host)
		}
	})

	t.Run("empty allows everything", func(t *testing.T) {
		al := newHostAllowlist([]string{" ", "*."})
		assert.Nil(t, al)
		assert.True(t, al.Allows("anything.example"))
	})
}

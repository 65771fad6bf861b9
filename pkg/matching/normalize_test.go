package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Weekly Sync", "Weekly Sync"},
		{"  Weekly   Sync\t", "Weekly Sync"},
		{"Re: Budget Review", "Budget Review"},
		{"RE:Budget Review", "Budget Review"},
		{"re:   Budget Review", "Budget Review"},
		{"Sales &amp; Marketing", "Sales & Marketing"},
		{"Sales & Marketing", "Sales & Marketing"},
		{"Notes Re: Budget", "Notes Re: Budget"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	for _, in := range []string{"Re:  A &amp; B ", "plain", "  spaced   out  "} {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once))
	}
}

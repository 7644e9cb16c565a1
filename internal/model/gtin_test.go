package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeGTIN(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"empty", "", "", true},
		{"nan sentinel", "NaN", "", true},
		{"gtin13", "1234567890123", "1234567890123", true},
		{"gtin8", "12345678", "12345678", true},
		{"excel float artifact", "1234567890123.0", "1234567890123", true},
		{"leading zeros preserved", "00012345678901", "00012345678901", true},
		{"leading zeros with float suffix", "00012345678901.0", "00012345678901", true},
		{"whitespace", "  1234567890123 ", "1234567890123", true},
		{"non numeric", "abc123", "", false},
		{"wrong length", "12345", "", false},
		{"garbage decimal", "12a.0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeGTIN(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchTypeDisplayRoundTrip(t *testing.T) {
	for _, mt := range []MatchType{MatchExact, MatchFuzzy, MatchNone} {
		assert.Equal(t, mt, MatchTypeFromDisplay(mt.Display()))
	}
	assert.Equal(t, MatchNone, MatchTypeFromDisplay(""))
}

package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type mode string

func TestNormalize(t *testing.T) {
	n := New[mode]("fixed", "linear", "exponential")

	tests := []struct {
		raw  string
		want mode
		ok   bool
	}{
		{"fixed", "fixed", true},
		{"  Linear ", "linear", true},
		{"EXPONENTIAL", "exponential", true},
		{"", "", false},
		{"random", "", false},
	}
	for _, tt := range tests {
		got, ok := n.Normalize(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestValid(t *testing.T) {
	assert.Equal(t, "exponential, fixed, linear", New[mode]("linear", "fixed", "exponential").Valid())
}

package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize("  Asha.Rao@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "asha.rao@example.com", got)

	for _, bad := range []string{"", "not-an-email", "Asha <asha@example.com>"} {
		_, err := Normalize(bad)
		assert.Error(t, err, bad)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"asha.rao@example.com", "Asha Rao"},
		{"ravi@example.com", "Ravi"},
		{"a.b.c@example.com", "A C"},
		{"@example.com", "Land Owner"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayName(tt.in), tt.in)
	}
}

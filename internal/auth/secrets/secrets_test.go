package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^\d{6}$`, code)
	}

	_, err := GenerateCode(0)
	assert.Error(t, err)
}

func TestHashAndMatches(t *testing.T) {
	hash, err := Hash("042917")
	require.NoError(t, err)
	assert.NotContains(t, hash, "042917")

	ok, err := Matches("042917", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches("042918", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Matches("042917", "not-a-hash")
	assert.Error(t, err)

	_, err = Hash("")
	assert.Error(t, err)
}

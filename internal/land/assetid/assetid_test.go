package assetid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "landledger/pkg/domain-errors"
)

func fixedRand(v int) func(int) int {
	return func(int) int { return v }
}

func TestGenerate(t *testing.T) {
	now := time.UnixMilli(1_712_345_417_230)

	t.Run("builds prefix, millis and zero-padded random", func(t *testing.T) {
		g := New(fixedRand(42))
		got, err := g.Generate("Karnataka", "Mysuru", now)
		require.NoError(t, err)
		assert.Equal(t, "KAMYS417230042", got)
	})

	t.Run("short names use what is available", func(t *testing.T) {
		g := New(fixedRand(7))
		got, err := g.Generate("k", "my", now)
		require.NoError(t, err)
		assert.Equal(t, "KMY417230007", got)
	})

	t.Run("pads leading zeros in millis", func(t *testing.T) {
		g := New(fixedRand(999))
		got, err := g.Generate("Goa", "North Goa", time.UnixMilli(5_000_000_012))
		require.NoError(t, err)
		assert.Equal(t, "GONOR000012999", got)
	})

	t.Run("empty state is a validation error", func(t *testing.T) {
		_, err := New(nil).Generate(" ", "Mysuru", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("empty district is a validation error", func(t *testing.T) {
		_, err := New(nil).Generate("Karnataka", "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("zero value generator uses default randomness", func(t *testing.T) {
		var g Generator
		got, err := g.Generate("Karnataka", "Mysuru", now)
		require.NoError(t, err)
		assert.Len(t, got, 14)
	})
}

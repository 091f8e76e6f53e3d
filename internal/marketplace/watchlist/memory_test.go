package watchlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "landledger/pkg/domain"
)

func TestInMemory_Toggle(t *testing.T) {
	ctx := context.Background()
	w := NewInMemory()
	user := id.NewUserID()
	first, second := id.NewLandID(), id.NewLandID()

	watching, err := w.Toggle(ctx, user, first)
	require.NoError(t, err)
	assert.True(t, watching)
	_, err = w.Toggle(ctx, user, second)
	require.NoError(t, err)

	list, err := w.List(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []id.LandID{first, second}, list)

	watching, err = w.Toggle(ctx, user, first)
	require.NoError(t, err)
	assert.False(t, watching)

	list, err = w.List(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []id.LandID{second}, list)

	other, err := w.List(ctx, id.NewUserID())
	require.NoError(t, err)
	assert.Empty(t, other)
}

package tx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "landledger/pkg/domain-errors"
)

func TestShardedRunner_RollsBackOnError(t *testing.T) {
	runner := NewShardedRunner(time.Second)
	state := map[string]int{"a": 1}

	boom := errors.New("boom")
	err := runner.RunInTx(context.Background(), "land-1", func(ctx context.Context) error {
		prev := state["a"]
		state["a"] = 2
		OnRollback(ctx, func() { state["a"] = prev })

		state["b"] = 3
		OnRollback(ctx, func() { delete(state, "b") })
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, map[string]int{"a": 1}, state)
}

func TestShardedRunner_KeepsWritesOnSuccess(t *testing.T) {
	runner := NewShardedRunner(time.Second)
	state := 0
	err := runner.RunInTx(context.Background(), "land-1", func(ctx context.Context) error {
		state = 5
		OnRollback(ctx, func() { state = 0 })
		assert.True(t, InTx(ctx))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, state)
}

func TestShardedRunner_SerialisesSameKey(t *testing.T) {
	runner := NewShardedRunner(time.Second)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = runner.RunInTx(context.Background(), "same-land", func(context.Context) error {
				current := counter
				time.Sleep(time.Microsecond)
				counter = current + 1
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedRunner_CancelledContext(t *testing.T) {
	runner := NewShardedRunner(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := runner.RunInTx(ctx, "land-1", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestOnRollbackOutsideTxIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		OnRollback(context.Background(), func() {})
	})
	assert.False(t, InTx(context.Background()))
}

func TestAfterCommit(t *testing.T) {
	t.Run("runs once the unit of work succeeds", func(t *testing.T) {
		runner := NewShardedRunner(time.Second)
		var ran []string
		err := runner.RunInTx(context.Background(), "land-1", func(ctx context.Context) error {
			AfterCommit(ctx, func() { ran = append(ran, "first") })
			AfterCommit(ctx, func() { ran = append(ran, "second") })
			assert.Empty(t, ran)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, ran)
	})

	t.Run("is dropped when the unit of work fails", func(t *testing.T) {
		runner := NewShardedRunner(time.Second)
		ran := false
		err := runner.RunInTx(context.Background(), "land-1", func(ctx context.Context) error {
			AfterCommit(ctx, func() { ran = true })
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.False(t, ran)
	})

	t.Run("runs immediately outside a unit of work", func(t *testing.T) {
		ran := false
		AfterCommit(context.Background(), func() { ran = true })
		assert.True(t, ran)
	})
}

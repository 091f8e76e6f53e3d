package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("ratelimit")
	assert.Equal(t, "ratelimit", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.False(t, b.IsOpen())
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		successes int
		steps     string // f = failure, s = success
		wantOpen  bool
	}{
		{name: "below failure threshold stays closed", failures: 3, successes: 1, steps: "ff", wantOpen: false},
		{name: "reaching failure threshold opens", failures: 3, successes: 1, steps: "fff", wantOpen: true},
		{name: "success clears failure streak", failures: 3, successes: 1, steps: "ffsff", wantOpen: false},
		{name: "needs consecutive successes to close", failures: 1, successes: 2, steps: "fs", wantOpen: true},
		{name: "closes after success threshold", failures: 1, successes: 2, steps: "fss", wantOpen: false},
		{name: "failure while open restarts recovery", failures: 1, successes: 3, steps: "fssfss", wantOpen: true},
		{name: "recovers after restart", failures: 1, successes: 3, steps: "fssfsss", wantOpen: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("redis", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			for _, step := range tt.steps {
				if step == 'f' {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
			}
			assert.Equal(t, tt.wantOpen, b.IsOpen())
		})
	}
}

func TestBreakerReportsStateChangesOnce(t *testing.T) {
	b := New("redis", WithFailureThreshold(2), WithSuccessThreshold(1))

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	require.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.False(t, change.Closed, "already closed")
}

func TestBreakerReset(t *testing.T) {
	b := New("redis", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())

	// the failure streak starts over after a reset
	_, change := b.RecordFailure()
	assert.True(t, change.Opened)
}

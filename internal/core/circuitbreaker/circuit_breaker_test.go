package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAfterFailures(t *testing.T) {
	cb := NewWithSettings("test", Settings{MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Minute})
	boom := errors.New("boom")

	calls := 0
	fail := func() error {
		calls++
		return boom
	}

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), boom)
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), boom)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	err := cb.Execute(context.Background(), fail)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	cb := New("test")

	for i := 0; i < 5; i++ {
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_SkipsDoneContext(t *testing.T) {
	cb := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

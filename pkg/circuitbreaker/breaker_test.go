package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func trip(t *testing.T, b *Breaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		err := b.Execute(context.Background(), func() error { return errBackend })
		require.ErrorIs(t, err, errBackend)
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Cooldown: time.Hour})

	trip(t, b, 3)
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Cooldown: time.Hour})

	trip(t, b, 2)
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	trip(t, b, 2)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Millisecond})

	trip(t, b, 1)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Cooldown: time.Millisecond})

	trip(t, b, 1)
	time.Sleep(5 * time.Millisecond)

	err := b.Execute(context.Background(), func() error { return errBackend })
	require.ErrorIs(t, err, errBackend)

	err = b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreakerLimitsHalfOpenProbes(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Cooldown: time.Millisecond, MaxProbes: 1})

	trip(t, b, 1)
	time.Sleep(5 * time.Millisecond)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrThrottled)

	close(release)
	require.NoError(t, <-done)
}

func TestBreakerCountsPanicAsFailure(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Cooldown: time.Hour})

	assert.Panics(t, func() {
		_ = b.Execute(context.Background(), func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

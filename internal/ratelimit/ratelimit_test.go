package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterNeverBlocks(t *testing.T) {
	l := New(0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx))
	}
}

func TestLimiterAllowsBurstUpToCapacity(t *testing.T) {
	l := New(60) // 1 token/sec, burst 60
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 60; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	// Every Wait adds up to maxJitter; refilling 60 tokens instead of
	// drawing on the burst would take a full minute.
	require.Less(t, time.Since(start), 60*maxJitter+time.Second)
}

func TestLimiterBlocksBeyondBurst(t *testing.T) {
	l := New(1) // 1/min: effectively empties after first token
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterRespectsContextCancellation(t *testing.T) {
	l := New(1)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))

	ctx2, cancel := context.WithCancel(ctx)
	cancel()
	err := l.Wait(ctx2)
	require.Error(t, err)
}

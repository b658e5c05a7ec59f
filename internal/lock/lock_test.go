package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAcquireRelease(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	token, ok, err := l.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	// Second acquire on the same room is refused, not an error.
	_, ok, err = l.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other rooms are independent.
	_, ok, err = l.Acquire(ctx, 2, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, 1, token))

	_, ok, err = l.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalReleaseWrongToken(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	token, ok, err := l.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale token must not free someone else's hold.
	require.NoError(t, l.Release(ctx, 1, "stale-token"))
	_, ok, err = l.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, 1, token))
	_, ok, err = l.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalConcurrentAcquire(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	const n = 32
	wins := make(chan string, n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			token, ok, err := l.Acquire(ctx, 7, time.Second)
			if err == nil && ok {
				wins <- token
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one goroutine may hold the room")
}

package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGate_FirstClaimWins(t *testing.T) {
	g := NewMemoryGate()
	ctx := context.Background()

	won, err := g.TryClaim(ctx, "mint-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = g.TryClaim(ctx, "mint-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	// Distinct keys are independent.
	won, err = g.TryClaim(ctx, "mint-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryGate_ConcurrentClaimsExactlyOneWinner(t *testing.T) {
	g := NewMemoryGate()
	ctx := context.Background()

	const claimants = 64
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := g.TryClaim(ctx, "mint-a", time.Minute)
			assert.NoError(t, err)
			if won {
				wins.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())
}

func TestMemoryGate_ClaimExpires(t *testing.T) {
	g := NewMemoryGate()
	now := time.Now()
	g.now = func() time.Time { return now }
	ctx := context.Background()

	won, err := g.TryClaim(ctx, "mint-a", time.Second)
	require.NoError(t, err)
	require.True(t, won)

	// Within the TTL the key stays claimed.
	now = now.Add(999 * time.Millisecond)
	won, err = g.TryClaim(ctx, "mint-a", time.Second)
	require.NoError(t, err)
	assert.False(t, won)

	// After expiry the key can be claimed again.
	now = now.Add(2 * time.Millisecond)
	won, err = g.TryClaim(ctx, "mint-a", time.Second)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryGate_EmptyKeyRejected(t *testing.T) {
	g := NewMemoryGate()
	_, err := g.TryClaim(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestMemoryGate_CancelledContext(t *testing.T) {
	g := NewMemoryGate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	won, err := g.TryClaim(ctx, "mint-a", time.Minute)
	assert.Error(t, err)
	assert.False(t, won)
}

package detect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveTracker_SeedAndPrice(t *testing.T) {
	tr := NewReserveTracker(0)

	_, ok := tr.Price("unknown")
	assert.False(t, ok)

	tr.Seed("mint-a")
	p, ok := tr.Price("mint-a")
	require.True(t, ok)
	// 30 SOL / 1.073B tokens
	assert.InDelta(t, 30.0/1_073_000_000.0, p, 1e-15)
}

func TestReserveTracker_BuyMovesPriceUp(t *testing.T) {
	tr := NewReserveTracker(0)
	tr.Seed("mint-a")

	before, ok := tr.Price("mint-a")
	require.True(t, ok)

	// 2 SOL in, 60M tokens out.
	tr.ApplyBuy("mint-a", 2_000_000_000, 60_000_000_000_000)
	after, ok := tr.Price("mint-a")
	require.True(t, ok)
	assert.Greater(t, after, before)
}

func TestReserveTracker_SeedIsIdempotent(t *testing.T) {
	tr := NewReserveTracker(0)
	tr.Seed("mint-a")
	tr.ApplyBuy("mint-a", 1_000_000_000, 1_000_000_000_000)
	moved, _ := tr.Price("mint-a")

	tr.Seed("mint-a")
	still, _ := tr.Price("mint-a")
	assert.Equal(t, moved, still)
}

func TestReserveTracker_BuyOnUnknownMintIgnored(t *testing.T) {
	tr := NewReserveTracker(0)
	tr.ApplyBuy("mint-a", 1_000_000_000, 1_000_000)
	_, ok := tr.Price("mint-a")
	assert.False(t, ok)
}

func TestReserveTracker_EvictsBeyondCapacity(t *testing.T) {
	tr := NewReserveTracker(4)
	for i := 0; i < 10; i++ {
		tr.Seed(fmt.Sprintf("mint-%d", i))
	}

	tracked := 0
	for i := 0; i < 10; i++ {
		if _, ok := tr.Price(fmt.Sprintf("mint-%d", i)); ok {
			tracked++
		}
	}
	assert.Equal(t, 4, tracked)
}

func TestReserveTracker_TokenReserveExhaustion(t *testing.T) {
	tr := NewReserveTracker(0)
	tr.Seed("mint-a")
	tr.ApplyBuy("mint-a", 1, initialVirtualTokenReserves)
	_, ok := tr.Price("mint-a")
	assert.False(t, ok)
}

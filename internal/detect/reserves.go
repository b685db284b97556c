package detect

import "sync"

// Initial virtual reserves of a freshly created bonding curve.
const (
	initialVirtualSolReserves   = 30_000_000_000        // 30 SOL in lamports
	initialVirtualTokenReserves = 1_073_000_000_000_000 // ~1.073B tokens, 6 decimals
)

const (
	lamportsPerSOL         = 1_000_000_000
	tokenBaseUnitsPerToken = 1_000_000
)

// reserves is the tracked virtual reserve pair for one mint.
type reserves struct {
	virtualSol   uint64 // lamports
	virtualToken uint64 // token base units
}

// ReserveTracker follows per-mint virtual reserves across observed buys
// so the bonding curve price can be quoted at any point. Entries live for
// the short window between token creation and the snipe decision; the
// tracker caps its size and evicts arbitrary entries beyond it, which is
// harmless because stale mints are never re-priced.
type ReserveTracker struct {
	mu       sync.Mutex
	reserves map[string]*reserves
	maxMints int
}

// NewReserveTracker creates a tracker bounded to maxMints entries.
func NewReserveTracker(maxMints int) *ReserveTracker {
	if maxMints <= 0 {
		maxMints = 4096
	}
	return &ReserveTracker{
		reserves: make(map[string]*reserves),
		maxMints: maxMints,
	}
}

// Seed initializes the virtual reserves for a newly created mint.
// Seeding an already-tracked mint is a no-op.
func (t *ReserveTracker) Seed(mint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.reserves[mint]; ok {
		return
	}
	if len(t.reserves) >= t.maxMints {
		for k := range t.reserves {
			delete(t.reserves, k)
			break
		}
	}
	t.reserves[mint] = &reserves{
		virtualSol:   initialVirtualSolReserves,
		virtualToken: initialVirtualTokenReserves,
	}
}

// ApplyBuy moves the virtual reserves by one observed buy: SOL flows in,
// tokens flow out. Unknown mints are ignored.
func (t *ReserveTracker) ApplyBuy(mint string, solLamports, tokenUnits uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.reserves[mint]
	if !ok {
		return
	}
	r.virtualSol += solLamports
	if tokenUnits <= r.virtualToken {
		r.virtualToken -= tokenUnits
	}
}

// Price returns the current curve price in SOL per token, or false when
// the mint is untracked or its token reserve has been exhausted.
func (t *ReserveTracker) Price(mint string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.reserves[mint]
	if !ok || r.virtualToken == 0 {
		return 0, false
	}
	sol := float64(r.virtualSol) / lamportsPerSOL
	tokens := float64(r.virtualToken) / tokenBaseUnitsPerToken
	return sol / tokens, true
}

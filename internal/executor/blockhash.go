package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// blockhashTTL is how long a fetched blockhash is reused. Blockhashes
// stay valid for roughly 60 seconds on chain; refreshing every half
// second keeps submits fast without risking expiry.
const blockhashTTL = 500 * time.Millisecond

// blockhashStaleLimit bounds how old a cached hash may be served when the
// RPC fetch fails. Past roughly a minute the chain rejects it anyway, so
// returning it would only waste a submit.
const blockhashStaleLimit = 60 * time.Second

// BlockhashCache serves recent blockhashes without hitting the RPC node
// on every submit.
type BlockhashCache struct {
	client rpcBlockhashClient
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hash      solana.Hash
	fetchedAt time.Time
}

type rpcBlockhashClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
}

// NewBlockhashCache creates a cache over the given RPC client.
func NewBlockhashCache(client *rpc.Client) *BlockhashCache {
	return &BlockhashCache{
		client: client,
		ttl:    blockhashTTL,
		now:    time.Now,
	}
}

// Get returns a recent blockhash, fetching a fresh one when the cached
// value is older than the TTL.
func (c *BlockhashCache) Get(ctx context.Context) (solana.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.hash, nil
	}

	res, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		// A stale hash beats no hash; the submit may still land. Past the
		// stale limit the hash is expired on chain, so fail instead.
		if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < blockhashStaleLimit {
			return c.hash, nil
		}
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	c.hash = res.Value.Blockhash
	c.fetchedAt = c.now()
	return c.hash, nil
}

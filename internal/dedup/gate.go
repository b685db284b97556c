// Package dedup provides the atomic claim gate that guarantees at most
// one trade attempt per mint across the process lifetime.
package dedup

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyKey is returned when a claim is attempted with no key.
	ErrEmptyKey = errors.New("dedup: empty key")

	// ErrUnavailable is returned when the backing store cannot be
	// reached. Callers must treat it as a failed claim.
	ErrUnavailable = errors.New("dedup: store unavailable")
)

// Gate atomically claims keys. TryClaim returns true exactly once per key
// within the TTL window; a claim is never released early, so a failed
// trade on a mint stays failed rather than being retried.
type Gate interface {
	// TryClaim attempts to claim key for ttl. It returns true when this
	// caller won the claim, false when the key is already claimed. On
	// error the caller must assume the claim was not won.
	TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Close releases the gate's resources.
	Close() error
}

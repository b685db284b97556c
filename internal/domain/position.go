package domain

import (
	"fmt"
	"time"
)

// PositionState is a stage in a position's lifecycle.
type PositionState string

// Position lifecycle states. Transitions are strictly forward:
// Detected -> Buying -> Holding -> Selling -> Closed, with failure
// exits from Buying and Selling.
const (
	StateDetected PositionState = "DETECTED"
	StateBuying   PositionState = "BUYING"
	StateHolding  PositionState = "HOLDING"
	StateSelling  PositionState = "SELLING"
	StateClosed   PositionState = "CLOSED"
	StateFailed   PositionState = "FAILED"
)

// Terminal reports whether the state ends the lifecycle.
func (s PositionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// allowedTransitions enumerates every legal state edge.
var allowedTransitions = map[PositionState][]PositionState{
	StateDetected: {StateBuying},
	StateBuying:   {StateHolding, StateFailed},
	StateHolding:  {StateSelling},
	StateSelling:  {StateClosed, StateFailed},
}

// ErrInvalidTransition wraps an attempted backward or skipped transition.
type ErrInvalidTransition struct {
	From, To PositionState
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid position transition %s -> %s", e.From, e.To)
}

// Position tracks one buy-then-sell trade. It is owned exclusively by the
// worker executing it until a terminal state is reached.
type Position struct {
	Mint           string
	Pool           string
	EntryPrice     float64 // SOL per token at entry
	AmountIn       uint64  // lamports committed to the buy
	TokenAmount    uint64  // token base units bought
	BuySignature   string
	CloseSignature string
	State          PositionState
	DetectedAt     time.Time
	OpenedAt       time.Time
	SellDeadline   time.Time
	FailReason     string
}

// NewPosition creates a position in the Detected state from a candidate.
func NewPosition(c *Candidate) *Position {
	return &Position{
		Mint:       c.Mint,
		Pool:       c.Pool,
		EntryPrice: c.SpotPrice,
		DetectedAt: c.DetectedAt,
		State:      StateDetected,
	}
}

// Transition moves the position to next, rejecting any edge not in the
// forward transition table. Terminal states accept no further transitions.
func (p *Position) Transition(next PositionState) error {
	for _, allowed := range allowedTransitions[p.State] {
		if next == allowed {
			p.State = next
			return nil
		}
	}
	return &ErrInvalidTransition{From: p.State, To: next}
}

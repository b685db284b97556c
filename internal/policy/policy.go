// Package policy decides whether a detected launch is worth trading.
package policy

import (
	"go.uber.org/zap"

	"shred-sniper/internal/domain"
)

// RejectReason explains why a candidate was not traded.
type RejectReason string

const (
	ReasonNone     RejectReason = ""
	ReasonBelowMin RejectReason = "below_min_price"
	ReasonAboveMax RejectReason = "above_max_price"
)

// Decision is the outcome of evaluating one candidate.
type Decision struct {
	Accept bool
	Reason RejectReason
}

// PriceBand accepts candidates whose launch buy commits an amount of SOL
// inside the configured band. Both bounds are inclusive. The band is
// denominated in whole SOL, the same scale the creator's buy is: a
// launch bought with 1.2 SOL sits inside the default 0.5 to 3.0 band.
type PriceBand struct {
	Min    float64 // SOL
	Max    float64
	logger *zap.Logger
}

// NewPriceBand creates a band policy with the given inclusive bounds.
func NewPriceBand(minPrice, maxPrice float64, logger *zap.Logger) *PriceBand {
	return &PriceBand{
		Min:    minPrice,
		Max:    maxPrice,
		logger: logger.Named("policy"),
	}
}

// Evaluate returns the trade decision for a candidate.
func (p *PriceBand) Evaluate(c *domain.Candidate) Decision {
	switch {
	case c.LaunchSOL < p.Min:
		p.logger.Debug("candidate rejected",
			zap.String("mint", c.Mint),
			zap.Float64("launch_sol", c.LaunchSOL),
			zap.String("reason", string(ReasonBelowMin)))
		return Decision{Reason: ReasonBelowMin}
	case c.LaunchSOL > p.Max:
		p.logger.Debug("candidate rejected",
			zap.String("mint", c.Mint),
			zap.Float64("launch_sol", c.LaunchSOL),
			zap.String("reason", string(ReasonAboveMax)))
		return Decision{Reason: ReasonAboveMax}
	default:
		return Decision{Accept: true}
	}
}

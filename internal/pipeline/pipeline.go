// Package pipeline wires the feed to the trade path: fee filter, launch
// detection, dedup, price policy and execution, in that order.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shred-sniper/internal/dedup"
	"shred-sniper/internal/detect"
	"shred-sniper/internal/domain"
	"shred-sniper/internal/feefilter"
	"shred-sniper/internal/observability"
	"shred-sniper/internal/policy"
)

// Trader opens positions for accepted candidates.
type Trader interface {
	Execute(c *domain.Candidate) *domain.Position
}

// Evaluator decides whether a candidate is worth trading.
type Evaluator interface {
	Evaluate(c *domain.Candidate) policy.Decision
}

// Pipeline consumes decoded transactions and drives candidates through
// the filter chain. All pre-execution stages run on the single consumer
// goroutine, so candidate handling is strictly in feed order.
type Pipeline struct {
	feed     <-chan domain.Transaction
	filter   feefilter.Filter
	detector *detect.Detector
	gate     dedup.Gate
	policy   Evaluator
	trader   Trader
	dedupTTL time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// New assembles the pipeline. metrics may be nil in tests.
func New(
	feed <-chan domain.Transaction,
	filter feefilter.Filter,
	detector *detect.Detector,
	gate dedup.Gate,
	evaluator Evaluator,
	trader Trader,
	dedupTTL time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		feed:     feed,
		filter:   filter,
		detector: detector,
		gate:     gate,
		policy:   evaluator,
		trader:   trader,
		dedupTTL: dedupTTL,
		metrics:  metrics,
		logger:   logger.Named("pipeline"),
	}
}

// Run processes the feed until it closes or the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tx, ok := <-p.feed:
			if !ok {
				p.logger.Info("feed closed")
				return nil
			}
			p.process(ctx, &tx)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, tx *domain.Transaction) {
	if p.metrics != nil {
		p.metrics.TransactionsDecoded.Inc()
		p.metrics.HighestSlotSeen.Set(float64(tx.Slot))
	}

	tip, ok := p.filter.Pass(tx)
	if !ok {
		if p.metrics != nil {
			p.metrics.FeeFiltered.Inc()
		}
		return
	}

	c := p.detector.Detect(tx, tip)
	if c == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.LaunchesDetected.Inc()
	}

	won, err := p.gate.TryClaim(ctx, c.Mint, p.dedupTTL)
	if err != nil {
		// Fail closed: an unreachable dedup store means no trade.
		if p.metrics != nil {
			p.metrics.DedupErrors.Inc()
		}
		p.logger.Warn("dedup claim failed, dropping candidate",
			zap.String("mint", c.Mint), zap.Error(err))
		return
	}
	if !won {
		if p.metrics != nil {
			p.metrics.DuplicatesSkipped.Inc()
		}
		p.logger.Debug("duplicate mint skipped", zap.String("mint", c.Mint))
		return
	}

	decision := p.policy.Evaluate(c)
	if !decision.Accept {
		if p.metrics != nil {
			p.metrics.PolicyRejections.WithLabelValues(string(decision.Reason)).Inc()
		}
		return
	}

	p.trader.Execute(c)
}

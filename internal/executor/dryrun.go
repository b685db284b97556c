package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// DryRunSubmitter logs swaps instead of sending them. Used with DRY_RUN
// to exercise the full detection and lifecycle path with no funds at
// risk.
type DryRunSubmitter struct {
	logger *zap.Logger
	seq    atomic.Uint64
}

// NewDryRunSubmitter creates a logging-only submitter.
func NewDryRunSubmitter(logger *zap.Logger) *DryRunSubmitter {
	return &DryRunSubmitter{logger: logger.Named("dryrun")}
}

func (s *DryRunSubmitter) SubmitBuy(ctx context.Context, mint string, tokenAmount, maxSolCost uint64) (string, error) {
	sig := fmt.Sprintf("dry-buy-%d", s.seq.Add(1))
	s.logger.Info("dry-run buy",
		zap.String("mint", mint),
		zap.Uint64("token_amount", tokenAmount),
		zap.Uint64("max_sol_cost_lamports", maxSolCost),
		zap.String("signature", sig))
	return sig, nil
}

func (s *DryRunSubmitter) SubmitSell(ctx context.Context, mint string, tokenAmount, minSolOut uint64) (string, error) {
	sig := fmt.Sprintf("dry-sell-%d", s.seq.Add(1))
	s.logger.Info("dry-run sell",
		zap.String("mint", mint),
		zap.Uint64("token_amount", tokenAmount),
		zap.Uint64("min_sol_out_lamports", minSolOut),
		zap.String("signature", sig))
	return sig, nil
}

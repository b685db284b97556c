// Package executor turns accepted candidates into the buy, timed hold
// and sell lifecycle, one goroutine per position.
package executor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"shred-sniper/internal/domain"
)

// slippageFactor haircuts the token amount derived from the observed
// price so the buy survives other buyers landing first.
const slippageFactor = 0.85

const (
	lamportsPerSOL         = 1_000_000_000
	tokenBaseUnitsPerToken = 1_000_000
)

// Submitter signs and submits swap transactions. Implementations must
// honor the context deadline.
type Submitter interface {
	SubmitBuy(ctx context.Context, mint string, tokenAmount, maxSolCost uint64) (string, error)
	SubmitSell(ctx context.Context, mint string, tokenAmount, minSolOut uint64) (string, error)
}

// RPCSubmitter submits swaps through a Solana RPC node with preflight
// skipped and no node-side retries, so the outcome is known immediately.
type RPCSubmitter struct {
	builder   *TxBuilder
	blockhash *BlockhashCache
	client    *rpc.Client
}

// NewRPCSubmitter wires a transaction builder to an RPC endpoint.
func NewRPCSubmitter(builder *TxBuilder, client *rpc.Client) *RPCSubmitter {
	return &RPCSubmitter{
		builder:   builder,
		blockhash: NewBlockhashCache(client),
		client:    client,
	}
}

func (s *RPCSubmitter) SubmitBuy(ctx context.Context, mint string, tokenAmount, maxSolCost uint64) (string, error) {
	hash, err := s.blockhash.Get(ctx)
	if err != nil {
		return "", err
	}
	tx, err := s.builder.BuildBuy(mint, tokenAmount, maxSolCost, hash)
	if err != nil {
		return "", err
	}
	return s.send(ctx, tx)
}

func (s *RPCSubmitter) SubmitSell(ctx context.Context, mint string, tokenAmount, minSolOut uint64) (string, error) {
	hash, err := s.blockhash.Get(ctx)
	if err != nil {
		return "", err
	}
	tx, err := s.builder.BuildSell(mint, tokenAmount, minSolOut, hash)
	if err != nil {
		return "", err
	}
	return s.send(ctx, tx)
}

func (s *RPCSubmitter) send(ctx context.Context, tx *solana.Transaction) (string, error) {
	maxRetries := uint(0)
	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		MaxRetries:          &maxRetries,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return sig.String(), nil
}

// Config holds the trade parameters of the executor.
type Config struct {
	BuyLamports   uint64
	SellDelay     time.Duration
	SubmitTimeout time.Duration
	SellRetries   int
	RetryDelay    time.Duration
}

// Hooks receive position lifecycle events. Nil hooks are skipped.
type Hooks struct {
	Opened func(*domain.Position)
	Closed func(*domain.Position)
	Failed func(*domain.Position)
}

// Executor runs position lifecycles. Each accepted candidate gets its own
// goroutine; positions never block each other or the detection path.
type Executor struct {
	cfg       Config
	submitter Submitter
	logger    *zap.Logger
	hooks     Hooks
	wg        sync.WaitGroup
}

// New creates an executor over the given submitter.
func New(cfg Config, submitter Submitter, logger *zap.Logger, hooks Hooks) *Executor {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	return &Executor{
		cfg:       cfg,
		submitter: submitter,
		logger:    logger.Named("executor"),
		hooks:     hooks,
	}
}

// Execute opens a position for the candidate and runs its lifecycle in
// the background. The returned position is owned by the executor until
// it reaches a terminal state.
func (e *Executor) Execute(c *domain.Candidate) *domain.Position {
	pos := domain.NewPosition(c)
	pos.AmountIn = e.cfg.BuyLamports
	pos.TokenAmount = e.tokenAmount(c.SpotPrice)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(pos)
	}()
	return pos
}

// Wait blocks until every in-flight position reaches a terminal state.
// Called on shutdown so held tokens are not stranded.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// tokenAmount sizes the buy from the observed spot price with the
// slippage haircut applied.
func (e *Executor) tokenAmount(spotPrice float64) uint64 {
	if spotPrice <= 0 {
		return 0
	}
	buySOL := float64(e.cfg.BuyLamports) / lamportsPerSOL
	tokens := buySOL / spotPrice * slippageFactor
	units := tokens * tokenBaseUnitsPerToken
	// Near-zero prices blow the conversion past uint64 range; clamp
	// instead of letting the cast produce garbage.
	if units >= float64(math.MaxUint64) {
		return math.MaxUint64
	}
	return uint64(units)
}

// run drives one position through its lifecycle. It deliberately uses a
// background context for submits: a shutdown must still complete the
// sell side of any open position.
func (e *Executor) run(pos *domain.Position) {
	log := e.logger.With(zap.String("mint", pos.Mint))

	if err := pos.Transition(domain.StateBuying); err != nil {
		e.fail(pos, log, fmt.Sprintf("transition: %v", err))
		return
	}

	buyCtx, cancel := context.WithTimeout(context.Background(), e.cfg.SubmitTimeout)
	sig, err := e.submitter.SubmitBuy(buyCtx, pos.Mint, pos.TokenAmount, pos.AmountIn)
	cancel()
	if err != nil {
		// The dedup claim stays held; a failed mint is never retried.
		e.fail(pos, log, fmt.Sprintf("buy: %v", err))
		return
	}
	pos.BuySignature = sig
	pos.OpenedAt = time.Now()
	pos.SellDeadline = pos.OpenedAt.Add(e.cfg.SellDelay)
	if err := pos.Transition(domain.StateHolding); err != nil {
		e.fail(pos, log, fmt.Sprintf("transition: %v", err))
		return
	}
	log.Info("position opened",
		zap.String("buy_signature", sig),
		zap.Uint64("amount_in_lamports", pos.AmountIn),
		zap.Uint64("token_amount", pos.TokenAmount),
		zap.Time("sell_deadline", pos.SellDeadline))
	if e.hooks.Opened != nil {
		e.hooks.Opened(pos)
	}

	if wait := time.Until(pos.SellDeadline); wait > 0 {
		time.Sleep(wait)
	}

	if err := pos.Transition(domain.StateSelling); err != nil {
		e.fail(pos, log, fmt.Sprintf("transition: %v", err))
		return
	}

	attempts := e.cfg.SellRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		sellCtx, cancel := context.WithTimeout(context.Background(), e.cfg.SubmitTimeout)
		sig, err := e.submitter.SubmitSell(sellCtx, pos.Mint, pos.TokenAmount, 0)
		cancel()
		if err == nil {
			pos.CloseSignature = sig
			if terr := pos.Transition(domain.StateClosed); terr != nil {
				e.fail(pos, log, fmt.Sprintf("transition: %v", terr))
				return
			}
			log.Info("position closed",
				zap.String("close_signature", sig),
				zap.Int("sell_attempts", attempt))
			if e.hooks.Closed != nil {
				e.hooks.Closed(pos)
			}
			return
		}
		log.Warn("sell attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
		if attempt < attempts {
			time.Sleep(e.cfg.RetryDelay)
		}
	}

	e.fail(pos, log, "sell retries exhausted")
}

func (e *Executor) fail(pos *domain.Position, log *zap.Logger, reason string) {
	pos.FailReason = reason
	if err := pos.Transition(domain.StateFailed); err != nil {
		log.Error("position stuck", zap.String("reason", reason), zap.Error(err))
		return
	}
	log.Warn("position failed", zap.String("reason", reason))
	if e.hooks.Failed != nil {
		e.hooks.Failed(pos)
	}
}

package detect

import (
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"shred-sniper/internal/domain"
)

// Detector recognizes the launch pattern: a pump.fun create instruction
// co-located with a buy against the same bonding curve. Anything
// ambiguous is dropped; a missed launch costs opportunity, a misparse
// costs money.
type Detector struct {
	logger   *zap.Logger
	reserves *ReserveTracker
}

// NewDetector creates a detector with its own reserve tracker.
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{
		logger:   logger.Named("detect"),
		reserves: NewReserveTracker(0),
	}
}

// Detect returns a priced candidate when the transaction contains an
// unambiguous create+buy pattern, nil otherwise. tip is the already
// extracted priority fee carried onto the candidate.
func (d *Detector) Detect(tx *domain.Transaction, tip uint64) *domain.Candidate {
	var createIx, buyIx *domain.Instruction
	for i := range tx.Instructions {
		ix := &tx.Instructions[i]
		switch {
		case isCreate(ix):
			if createIx != nil {
				return nil // two creates in one transaction: ambiguous
			}
			createIx = ix
		case isBuy(ix):
			if buyIx != nil {
				return nil
			}
			buyIx = ix
		}
	}
	if createIx == nil || buyIx == nil {
		return nil
	}

	mint := account(createIx, createMintIndex)
	curve := account(createIx, createCurveIndex)
	if mint == "" || curve == "" {
		return nil
	}
	// Both instructions must reference the same token and pool.
	if account(buyIx, buyMintIndex) != mint || account(buyIx, buyCurveIndex) != curve {
		return nil
	}

	// The mint is a keypair account and must be a valid curve point; the
	// bonding curve is a PDA and must not be. Anything else is a misparse.
	if !isOnCurve(mint) || isOnCurve(curve) {
		return nil
	}

	buy, err := parseBuyArgs(buyIx.Data)
	if err != nil {
		d.logger.Debug("buy args rejected", zap.String("signature", tx.Signature), zap.Error(err))
		return nil
	}
	if buy.Amount == 0 || buy.MaxSolCost == 0 {
		return nil
	}

	d.reserves.Seed(mint)
	d.reserves.ApplyBuy(mint, buy.MaxSolCost, buy.Amount)

	// The SOL the creator committed is what the price band filters on;
	// the per-token spot implied by the same buy drives position sizing.
	launchSOL := float64(buy.MaxSolCost) / lamportsPerSOL
	baseTokens := float64(buy.Amount) / tokenBaseUnitsPerToken
	spot := launchSOL / baseTokens

	meta, metaErr := parseCreateArgs(createIx.Data)
	curvePrice, _ := d.reserves.Price(mint)

	fields := []zap.Field{
		zap.String("signature", tx.Signature),
		zap.String("mint", mint),
		zap.String("curve", curve),
		zap.Uint64("slot", tx.Slot),
		zap.Float64("launch_sol", launchSOL),
		zap.Float64("spot_price_sol", spot),
		zap.Float64("curve_price_sol", curvePrice),
		zap.Uint64("tip_lamports", tip),
	}
	if metaErr == nil {
		fields = append(fields,
			zap.String("name", meta.Name),
			zap.String("symbol", meta.Symbol))
	}
	d.logger.Info("launch detected", fields...)

	return &domain.Candidate{
		Signature:   tx.Signature,
		Mint:        mint,
		Pool:        curve,
		LaunchSOL:   launchSOL,
		SpotPrice:   spot,
		TipLamports: tip,
		Slot:        tx.Slot,
		DetectedAt:  time.Now(),
	}
}

// isOnCurve reports whether the address decodes to a valid ed25519 curve
// point. Wallet and mint keys are on-curve; program derived addresses are
// off-curve by construction.
func isOnCurve(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

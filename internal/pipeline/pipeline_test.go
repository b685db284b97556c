package pipeline

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shred-sniper/internal/dedup"
	"shred-sniper/internal/detect"
	"shred-sniper/internal/domain"
	"shred-sniper/internal/feefilter"
	"shred-sniper/internal/policy"
)

type fakeTrader struct {
	mu    sync.Mutex
	mints []string
}

func (f *fakeTrader) Execute(c *domain.Candidate) *domain.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mints = append(f.mints, c.Mint)
	return domain.NewPosition(c)
}

func (f *fakeTrader) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mints...)
}

type errGate struct{}

func (errGate) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, dedup.ErrUnavailable
}

func (errGate) Close() error { return nil }

func onCurveAddr(seed byte) string {
	var raw [64]byte
	for i := range raw {
		raw[i] = seed
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return base58.Encode(new(edwards25519.Point).ScalarBaseMult(s).Bytes())
}

func offCurveAddr(t *testing.T, seed byte) string {
	t.Helper()
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = seed
	}
	for i := 0; i < 256; i++ {
		buf[0] = byte(i)
		if _, err := new(edwards25519.Point).SetBytes(buf); err != nil {
			return base58.Encode(buf)
		}
	}
	t.Fatal("no off-curve candidate found")
	return ""
}

// launchTx builds a transaction holding a priority fee plus a pump.fun
// create and buy pair for the given mint.
func launchTx(t *testing.T, sig, mint, curve string, tokenAmount, maxSolCost, feeMicroLamports uint64) domain.Transaction {
	t.Helper()

	feeData := make([]byte, 9)
	feeData[0] = 3 // set compute unit price
	binary.LittleEndian.PutUint64(feeData[1:], feeMicroLamports)

	createData := []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
	for _, s := range []string{"Token", "TOK", "uri"} {
		createData = binary.LittleEndian.AppendUint32(createData, uint32(len(s)))
		createData = append(createData, s...)
	}

	buyData := []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	buyData = binary.LittleEndian.AppendUint64(buyData, tokenAmount)
	buyData = binary.LittleEndian.AppendUint64(buyData, maxSolCost)

	return domain.Transaction{
		Signature:     sig,
		Slot:          100,
		NumSignatures: 1,
		Instructions: []domain.Instruction{
			{ProgramID: feefilter.ComputeBudgetProgram, Data: feeData},
			{ProgramID: detect.PumpFunProgram, Accounts: []string{mint, "meta", curve, "vault", "global"}, Data: createData},
			{ProgramID: detect.PumpFunProgram, Accounts: []string{"global", "fee", mint, curve, "vault", "user_ata", "user"}, Data: buyData},
		},
	}
}

// runPipeline feeds txs through a fresh pipeline and returns the trader.
func runPipeline(t *testing.T, gate dedup.Gate, txs ...domain.Transaction) *fakeTrader {
	t.Helper()

	feed := make(chan domain.Transaction, len(txs))
	for _, tx := range txs {
		feed <- tx
	}
	close(feed)

	trader := &fakeTrader{}
	p := New(
		feed,
		feefilter.Filter{Ceiling: 10_000},
		detect.NewDetector(zap.NewNop()),
		gate,
		policy.NewPriceBand(0.5, 3.0, zap.NewNop()),
		trader,
		time.Minute,
		nil,
		zap.NewNop(),
	)
	require.NoError(t, p.Run(context.Background()))
	return trader
}

func TestPipeline_AcceptedLaunchIsTraded(t *testing.T) {
	mint := onCurveAddr(7)
	curve := offCurveAddr(t, 9)

	// A realistic launch: 30M tokens bought for 1 SOL. The 1 SOL
	// commitment sits inside the default band. Fee of 10
	// micro-lamports/CU with the default limit is 2 lamports.
	tx := launchTx(t, "sig-1", mint, curve, 30_000_000_000_000, 1_000_000_000, 10)

	trader := runPipeline(t, dedup.NewMemoryGate(), tx)
	assert.Equal(t, []string{mint}, trader.executed())
}

func TestPipeline_HighTipIsFiltered(t *testing.T) {
	mint := onCurveAddr(7)
	curve := offCurveAddr(t, 9)

	// 100_000 micro-lamports/CU * 200_000 CU = 20_000 lamports, over the
	// 10_000 ceiling.
	tx := launchTx(t, "sig-1", mint, curve, 30_000_000_000_000, 1_000_000_000, 100_000)

	trader := runPipeline(t, dedup.NewMemoryGate(), tx)
	assert.Empty(t, trader.executed())
}

func TestPipeline_LaunchOutsideBandIsRejected(t *testing.T) {
	mint := onCurveAddr(7)
	curve := offCurveAddr(t, 9)
	over := onCurveAddr(11)
	overCurve := offCurveAddr(t, 13)

	// 0.1 SOL committed: below the band minimum.
	below := launchTx(t, "sig-1", mint, curve, 30_000_000_000_000, 100_000_000, 10)
	// 5 SOL committed: above the band maximum.
	above := launchTx(t, "sig-2", over, overCurve, 30_000_000_000_000, 5_000_000_000, 10)

	trader := runPipeline(t, dedup.NewMemoryGate(), below, above)
	assert.Empty(t, trader.executed())
}

func TestPipeline_DuplicateMintTradedOnce(t *testing.T) {
	mint := onCurveAddr(7)
	curve := offCurveAddr(t, 9)

	tx1 := launchTx(t, "sig-1", mint, curve, 50_000_000_000_000, 1_000_000_000, 10)
	tx2 := launchTx(t, "sig-2", mint, curve, 50_000_000_000_000, 1_000_000_000, 10)

	trader := runPipeline(t, dedup.NewMemoryGate(), tx1, tx2)
	assert.Equal(t, []string{mint}, trader.executed(), "second sighting of the mint must be skipped")
}

func TestPipeline_DedupErrorFailsClosed(t *testing.T) {
	mint := onCurveAddr(7)
	curve := offCurveAddr(t, 9)

	tx := launchTx(t, "sig-1", mint, curve, 50_000_000_000_000, 1_000_000_000, 10)

	trader := runPipeline(t, errGate{}, tx)
	assert.Empty(t, trader.executed(), "a failed claim must never trade")
}

func TestPipeline_DistinctMintsTradeIndependently(t *testing.T) {
	mintA := onCurveAddr(7)
	mintB := onCurveAddr(11)
	curveA := offCurveAddr(t, 9)
	curveB := offCurveAddr(t, 13)

	tx1 := launchTx(t, "sig-1", mintA, curveA, 50_000_000_000_000, 1_000_000_000, 10)
	tx2 := launchTx(t, "sig-2", mintB, curveB, 50_000_000_000_000, 1_000_000_000, 10)

	trader := runPipeline(t, dedup.NewMemoryGate(), tx1, tx2)
	assert.Equal(t, []string{mintA, mintB}, trader.executed())
}

func TestPipeline_ContextCancellationStopsRun(t *testing.T) {
	feed := make(chan domain.Transaction)
	p := New(
		feed,
		feefilter.Filter{Ceiling: 10_000},
		detect.NewDetector(zap.NewNop()),
		dedup.NewMemoryGate(),
		policy.NewPriceBand(1e-9, 1e-7, zap.NewNop()),
		&fakeTrader{},
		time.Minute,
		nil,
		zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop on cancellation")
	}
}

package feefilter

import (
	"encoding/binary"
	"math"
	"testing"

	"shred-sniper/internal/domain"
)

func priceIx(microLamports uint64) domain.Instruction {
	data := make([]byte, 9)
	data[0] = tagSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return domain.Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

func limitIx(units uint32) domain.Instruction {
	data := make([]byte, 5)
	data[0] = tagSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return domain.Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

func TestTip(t *testing.T) {
	tests := []struct {
		name string
		tx   domain.Transaction
		want uint64
	}{
		{
			name: "price with default limit",
			// 5000 micro-lamports/CU * 200_000 CU = 1000 lamports
			tx:   domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{priceIx(5000)}},
			want: 1000,
		},
		{
			name: "price with explicit limit",
			// 10_000 micro-lamports/CU * 100_000 CU = 1000 lamports
			tx: domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{
				limitIx(100_000), priceIx(10_000),
			}},
			want: 1000,
		},
		{
			name: "tiny price rounds up",
			tx: domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{
				limitIx(1), priceIx(1),
			}},
			want: 1,
		},
		{
			name: "no priority fee falls back to base fee",
			tx:   domain.Transaction{NumSignatures: 1},
			want: LamportsPerSignature,
		},
		{
			name: "base fee scales with signatures",
			tx:   domain.Transaction{NumSignatures: 3},
			want: 3 * LamportsPerSignature,
		},
		{
			name: "truncated compute budget data ignored",
			tx: domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{
				{ProgramID: ComputeBudgetProgram, Data: []byte{tagSetComputeUnitPrice, 1}},
			}},
			want: LamportsPerSignature,
		},
		{
			name: "other programs ignored",
			tx: domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{
				{ProgramID: "SomeOtherProgram", Data: []byte{tagSetComputeUnitPrice, 1, 0, 0, 0, 0, 0, 0, 0}},
			}},
			want: LamportsPerSignature,
		},
		{
			name: "absurd price saturates instead of wrapping",
			tx:   domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{priceIx(1 << 62)}},
			want: math.MaxUint64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tip(&tt.tx); got != tt.want {
				t.Errorf("Tip() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFilter_Pass(t *testing.T) {
	f := Filter{Ceiling: 5000}

	tests := []struct {
		name string
		tip  uint64 // micro-lamports per CU with default 200k limit
		pass bool
	}{
		{"below ceiling", 1000, true},
		{"at ceiling", 25_000, true},   // 25_000 * 200_000 / 1e6 = 5000
		{"above ceiling", 25_005, false}, // 5001
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{priceIx(tt.tip)}}
			_, ok := f.Pass(&tx)
			if ok != tt.pass {
				t.Errorf("Pass() = %v, want %v", ok, tt.pass)
			}
		})
	}
}

// For all transactions with tip above the ceiling no candidate may ever
// be produced, including when the tip product would overflow uint64.
func TestFilter_OverflowingTipNeverPasses(t *testing.T) {
	f := Filter{Ceiling: 100_000}
	tx := domain.Transaction{NumSignatures: 1, Instructions: []domain.Instruction{priceIx(1 << 62)}}
	if tip, ok := f.Pass(&tx); ok {
		t.Errorf("overflowing tip passed the ceiling (tip=%d)", tip)
	}
}

// For all transactions with tip above the ceiling no candidate may ever be
// produced; the filter is the gate that guarantees it.
func TestFilter_BaseFeeFilteredByDefaultCeiling(t *testing.T) {
	f := Filter{Ceiling: 4999}
	tx := domain.Transaction{NumSignatures: 1}
	if _, ok := f.Pass(&tx); ok {
		t.Error("transaction without priority fee must not pass a sub-base-fee ceiling")
	}
}

// Package feefilter extracts the priority fee signal from a transaction
// and applies the tip ceiling. It is the primary volume-reduction filter
// and runs before any instruction-pattern parsing.
package feefilter

import (
	"encoding/binary"
	"math"
	"math/bits"

	"shred-sniper/internal/domain"
)

// ComputeBudgetProgram is the compute budget program address.
const ComputeBudgetProgram = "ComputeBudget111111111111111111111111111111"

// Compute budget instruction tags.
const (
	tagSetComputeUnitLimit = 2 // u32 LE compute unit limit
	tagSetComputeUnitPrice = 3 // u64 LE price in micro-lamports per unit
)

const (
	// DefaultUnitLimit applies when a transaction sets a price but no
	// explicit compute unit limit.
	DefaultUnitLimit = 200_000

	// LamportsPerSignature is the base fee charged per required signature.
	LamportsPerSignature = 5_000

	microLamportsPerLamport = 1_000_000
)

// Tip computes the transaction's priority fee in lamports. With no
// explicit compute unit price the base fee is returned instead, which is
// effectively high and gets removed by the ceiling check.
func Tip(tx *domain.Transaction) uint64 {
	var (
		price    uint64
		priceSet bool
		limit    uint64 = DefaultUnitLimit
	)

	for _, ix := range tx.Instructions {
		if ix.ProgramID != ComputeBudgetProgram || len(ix.Data) < 1 {
			continue
		}
		switch ix.Data[0] {
		case tagSetComputeUnitPrice:
			if len(ix.Data) >= 9 {
				price = binary.LittleEndian.Uint64(ix.Data[1:9])
				priceSet = true
			}
		case tagSetComputeUnitLimit:
			if len(ix.Data) >= 5 {
				limit = uint64(binary.LittleEndian.Uint32(ix.Data[1:5]))
			}
		}
	}

	if !priceSet {
		sigs := tx.NumSignatures
		if sigs < 1 {
			sigs = 1
		}
		return uint64(sigs) * LamportsPerSignature
	}

	// Round up so a non-zero price never computes to a zero tip. The
	// product saturates rather than wraps: an absurd price must stay
	// above any ceiling, never underflow past it.
	hi, lo := bits.Mul64(price, limit)
	if hi != 0 || lo > math.MaxUint64-(microLamportsPerLamport-1) {
		return math.MaxUint64
	}
	return (lo + microLamportsPerLamport - 1) / microLamportsPerLamport
}

// Filter drops transactions whose tip exceeds the ceiling.
type Filter struct {
	Ceiling uint64 // lamports
}

// Pass returns the tip and whether the transaction survives the ceiling
// check. The ceiling is inclusive: tip == ceiling passes.
func (f Filter) Pass(tx *domain.Transaction) (uint64, bool) {
	tip := Tip(tx)
	return tip, tip <= f.Ceiling
}

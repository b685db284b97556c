// Package domain holds the core types passed between pipeline stages.
package domain

import "time"

// Instruction is a single decoded instruction with resolved account addresses.
type Instruction struct {
	ProgramID string   // base58 program address
	Accounts  []string // base58 account addresses in instruction order
	Data      []byte   // raw instruction data
}

// Transaction is a transaction decoded from a shred entry.
// It is consumed by the fee filter and detector and then discarded.
type Transaction struct {
	Signature     string // base58 of the first signature
	Slot          uint64
	AccountKeys   []string // static account keys, fee payer first
	Instructions  []Instruction
	NumSignatures int // required signatures, drives the base fee fallback
}

// Candidate is a priced snipe opportunity. Immutable once created:
// the detector only produces one when the fee ceiling passed and the
// instruction pattern was unambiguous.
type Candidate struct {
	Signature   string
	Mint        string
	Pool        string  // bonding curve address
	LaunchSOL   float64 // SOL committed by the launch buy, the band-filtered quantity
	SpotPrice   float64 // SOL per token implied by the launch buy, drives sizing
	TipLamports uint64
	Slot        uint64
	DetectedAt  time.Time
}

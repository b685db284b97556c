// Package detect recognizes token-launch swap patterns in decoded
// transactions and prices them into candidates.
package detect

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"shred-sniper/internal/domain"
)

// PumpFunProgram is the pump.fun bonding curve program address.
const PumpFunProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// Anchor instruction discriminators for the pump.fun program.
var (
	createDiscriminator = []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
	buyDiscriminator    = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
)

// Account positions within the pump.fun instructions.
const (
	createMintIndex  = 0
	createCurveIndex = 2

	buyMintIndex  = 2
	buyCurveIndex = 3
)

// createArgs is the decoded create instruction payload. Metadata is
// informational only; pricing never depends on it.
type createArgs struct {
	Name   string
	Symbol string
	URI    string
}

// buyArgs is the decoded buy instruction payload.
type buyArgs struct {
	Amount     uint64 // token base units requested
	MaxSolCost uint64 // lamports the buyer is willing to spend
}

func isCreate(ix *domain.Instruction) bool {
	return ix.ProgramID == PumpFunProgram &&
		len(ix.Data) >= 8 && bytes.Equal(ix.Data[:8], createDiscriminator)
}

func isBuy(ix *domain.Instruction) bool {
	return ix.ProgramID == PumpFunProgram &&
		len(ix.Data) >= 8 && bytes.Equal(ix.Data[:8], buyDiscriminator)
}

// parseCreateArgs decodes the borsh-encoded create payload after the
// discriminator: three length-prefixed strings.
func parseCreateArgs(data []byte) (*createArgs, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("create payload too short")
	}
	rest := data[8:]

	var fields [3]string
	for i := range fields {
		s, n, err := readBorshString(rest)
		if err != nil {
			return nil, fmt.Errorf("create arg %d: %w", i, err)
		}
		fields[i] = s
		rest = rest[n:]
	}

	return &createArgs{Name: fields[0], Symbol: fields[1], URI: fields[2]}, nil
}

// parseBuyArgs decodes the buy payload: amount then max_sol_cost, both
// little-endian u64.
func parseBuyArgs(data []byte) (*buyArgs, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("buy payload too short: %d bytes", len(data))
	}
	return &buyArgs{
		Amount:     binary.LittleEndian.Uint64(data[8:16]),
		MaxSolCost: binary.LittleEndian.Uint64(data[16:24]),
	}, nil
}

func readBorshString(data []byte) (string, int, error) {
	if len(data) < 4 {
		return "", 0, fmt.Errorf("missing length prefix")
	}
	n := int(binary.LittleEndian.Uint32(data))
	if n < 0 || 4+n > len(data) {
		return "", 0, fmt.Errorf("string length %d exceeds payload", n)
	}
	return string(data[4 : 4+n]), 4 + n, nil
}

func account(ix *domain.Instruction, idx int) string {
	if idx < len(ix.Accounts) {
		return ix.Accounts[idx]
	}
	return ""
}

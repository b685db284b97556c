// Package shredstream ingests raw block fragments from a shred relay and
// reassembles them into decoded transactions.
package shredstream

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"shred-sniper/internal/domain"
)

// Wire-format sizes.
const (
	signatureLen = 64
	pubkeyLen    = 32
	blockhashLen = 32
)

// versionPrefixMask marks a versioned transaction message. The low bits
// carry the message version number.
const versionPrefixMask = 0x80

// DecodeEntry decodes one relay entry payload into transactions.
// The payload starts with a little-endian u64 transaction count followed
// by that many serialized transactions. A malformed payload is reported
// as an error; the caller skips the fragment and keeps ingesting.
func DecodeEntry(payload []byte, slot uint64) ([]domain.Transaction, error) {
	r := newByteReader(payload)

	count, err := r.readUint64LE()
	if err != nil {
		return nil, fmt.Errorf("entry transaction count: %w", err)
	}
	if count > uint64(len(payload)) {
		// A count larger than the payload itself can only be garbage.
		return nil, fmt.Errorf("implausible transaction count %d", count)
	}

	txs := make([]domain.Transaction, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, err := decodeTransaction(r, slot)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

// decodeTransaction decodes a single wire transaction: a shortvec of
// signatures followed by a legacy or versioned message.
func decodeTransaction(r *byteReader, slot uint64) (*domain.Transaction, error) {
	sigCount, err := r.readShortvecLen()
	if err != nil {
		return nil, fmt.Errorf("signature count: %w", err)
	}
	if sigCount == 0 {
		return nil, fmt.Errorf("transaction without signatures")
	}

	var firstSig []byte
	for i := 0; i < sigCount; i++ {
		sig, err := r.readBytes(signatureLen)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		if i == 0 {
			firstSig = sig
		}
	}

	tx := &domain.Transaction{
		Signature: base58.Encode(firstSig),
		Slot:      slot,
	}

	if err := decodeMessage(r, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// decodeMessage decodes the message body into the transaction. Versioned
// (v0) messages carry address table lookups after the instruction list;
// looked-up accounts cannot be resolved from the wire alone, so only the
// static keys are exposed. Instructions referencing unresolvable indices
// keep empty account slots and fail downstream pattern matching, which is
// the safe direction.
func decodeMessage(r *byteReader, tx *domain.Transaction) error {
	first, err := r.peekByte()
	if err != nil {
		return fmt.Errorf("message header: %w", err)
	}

	versioned := first&versionPrefixMask != 0
	if versioned {
		// Consume the version prefix byte.
		r.skip(1)
	}

	header, err := r.readBytes(3)
	if err != nil {
		return fmt.Errorf("message header: %w", err)
	}
	tx.NumSignatures = int(header[0])

	keyCount, err := r.readShortvecLen()
	if err != nil {
		return fmt.Errorf("account key count: %w", err)
	}
	keys := make([]string, 0, keyCount)
	for i := 0; i < keyCount; i++ {
		raw, err := r.readBytes(pubkeyLen)
		if err != nil {
			return fmt.Errorf("account key %d: %w", i, err)
		}
		keys = append(keys, base58.Encode(raw))
	}
	tx.AccountKeys = keys

	if _, err := r.readBytes(blockhashLen); err != nil {
		return fmt.Errorf("recent blockhash: %w", err)
	}

	ixCount, err := r.readShortvecLen()
	if err != nil {
		return fmt.Errorf("instruction count: %w", err)
	}
	instructions := make([]domain.Instruction, 0, ixCount)
	for i := 0; i < ixCount; i++ {
		ix, err := decodeInstruction(r, keys)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		instructions = append(instructions, *ix)
	}
	tx.Instructions = instructions

	if versioned {
		if err := skipAddressTableLookups(r); err != nil {
			return err
		}
	}
	return nil
}

func decodeInstruction(r *byteReader, keys []string) (*domain.Instruction, error) {
	programIdx, err := r.readByte()
	if err != nil {
		return nil, err
	}

	accCount, err := r.readShortvecLen()
	if err != nil {
		return nil, err
	}
	accounts := make([]string, 0, accCount)
	for i := 0; i < accCount; i++ {
		idx, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if int(idx) < len(keys) {
			accounts = append(accounts, keys[idx])
		} else {
			// Index into an address lookup table; unresolvable here.
			accounts = append(accounts, "")
		}
	}

	dataLen, err := r.readShortvecLen()
	if err != nil {
		return nil, err
	}
	data, err := r.readBytes(dataLen)
	if err != nil {
		return nil, err
	}

	ix := &domain.Instruction{Accounts: accounts, Data: data}
	if int(programIdx) < len(keys) {
		ix.ProgramID = keys[programIdx]
	}
	return ix, nil
}

func skipAddressTableLookups(r *byteReader) error {
	lookupCount, err := r.readShortvecLen()
	if err != nil {
		return fmt.Errorf("lookup count: %w", err)
	}
	for i := 0; i < lookupCount; i++ {
		if _, err := r.readBytes(pubkeyLen); err != nil {
			return fmt.Errorf("lookup %d key: %w", i, err)
		}
		for j := 0; j < 2; j++ { // writable then readonly index lists
			n, err := r.readShortvecLen()
			if err != nil {
				return fmt.Errorf("lookup %d indexes: %w", i, err)
			}
			if _, err := r.readBytes(n); err != nil {
				return fmt.Errorf("lookup %d indexes: %w", i, err)
			}
		}
	}
	return nil
}

// byteReader is a bounds-checked cursor over an entry payload.
type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("truncated: need %d bytes at offset %d of %d", n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) readByte() (byte, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) peekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("truncated at offset %d", r.pos)
	}
	return r.data[r.pos], nil
}

func (r *byteReader) skip(n int) {
	r.pos += n
}

func (r *byteReader) readUint64LE() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readShortvecLen reads a compact-u16 length (Solana shortvec encoding).
func (r *byteReader) readShortvecLen() (int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		value |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			return int(value), nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("shortvec length overflow")
}

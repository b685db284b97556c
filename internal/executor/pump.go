package executor

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// pump.fun program accounts.
var (
	pumpProgram    = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	globalAccount  = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	feeRecipient   = solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV")
	eventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

// Anchor discriminators for the pump.fun swap instructions.
var (
	buySelector  = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	sellSelector = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
)

var bondingCurveSeed = []byte("bonding-curve")

// Compute budget settings for swap transactions.
const (
	swapComputeUnitPrice = 200_000 // micro-lamports per unit
	swapComputeUnitLimit = 200_000
)

// TxBuilder assembles signed pump.fun swap transactions for one wallet.
type TxBuilder struct {
	signer solana.PrivateKey
	owner  solana.PublicKey
}

// NewTxBuilder parses the base58 private key. The key itself is never
// logged or persisted beyond this struct.
func NewTxBuilder(privateKey string) (*TxBuilder, error) {
	signer, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &TxBuilder{signer: signer, owner: signer.PublicKey()}, nil
}

// Owner returns the wallet public key.
func (b *TxBuilder) Owner() solana.PublicKey {
	return b.owner
}

// swapAccounts derives the per-mint accounts a swap touches.
type swapAccounts struct {
	mint           solana.PublicKey
	bondingCurve   solana.PublicKey
	curveTokenAcct solana.PublicKey
	userTokenAcct  solana.PublicKey
}

func (b *TxBuilder) deriveAccounts(mint solana.PublicKey) (*swapAccounts, error) {
	curve, _, err := solana.FindProgramAddress(
		[][]byte{bondingCurveSeed, mint.Bytes()}, pumpProgram)
	if err != nil {
		return nil, fmt.Errorf("derive bonding curve: %w", err)
	}
	curveATA, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return nil, fmt.Errorf("derive curve token account: %w", err)
	}
	userATA, _, err := solana.FindAssociatedTokenAddress(b.owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive user token account: %w", err)
	}
	return &swapAccounts{
		mint:           mint,
		bondingCurve:   curve,
		curveTokenAcct: curveATA,
		userTokenAcct:  userATA,
	}, nil
}

// BuildBuy builds a signed transaction that creates the wallet's token
// account if needed and buys tokenAmount base units for at most
// maxSolCost lamports.
func (b *TxBuilder) BuildBuy(mintAddr string, tokenAmount, maxSolCost uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, fmt.Errorf("parse mint: %w", err)
	}
	accts, err := b.deriveAccounts(mint)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 24)
	data = append(data, buySelector...)
	data = appendUint64(data, tokenAmount)
	data = appendUint64(data, maxSolCost)

	buyIx := solana.NewInstruction(pumpProgram, solana.AccountMetaSlice{
		solana.Meta(globalAccount),
		solana.Meta(feeRecipient).WRITE(),
		solana.Meta(accts.mint),
		solana.Meta(accts.bondingCurve).WRITE(),
		solana.Meta(accts.curveTokenAcct).WRITE(),
		solana.Meta(accts.userTokenAcct).WRITE(),
		solana.Meta(b.owner).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(eventAuthority),
		solana.Meta(pumpProgram),
	}, data)

	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitPriceInstruction(swapComputeUnitPrice).Build(),
		computebudget.NewSetComputeUnitLimitInstruction(swapComputeUnitLimit).Build(),
		b.createTokenAccountIx(accts),
		buyIx,
	}
	return b.sign(ixs, blockhash)
}

// BuildSell builds a signed transaction selling tokenAmount base units
// for at least minSolOut lamports.
func (b *TxBuilder) BuildSell(mintAddr string, tokenAmount, minSolOut uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, fmt.Errorf("parse mint: %w", err)
	}
	accts, err := b.deriveAccounts(mint)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 24)
	data = append(data, sellSelector...)
	data = appendUint64(data, tokenAmount)
	data = appendUint64(data, minSolOut)

	sellIx := solana.NewInstruction(pumpProgram, solana.AccountMetaSlice{
		solana.Meta(globalAccount),
		solana.Meta(feeRecipient).WRITE(),
		solana.Meta(accts.mint),
		solana.Meta(accts.bondingCurve).WRITE(),
		solana.Meta(accts.curveTokenAcct).WRITE(),
		solana.Meta(accts.userTokenAcct).WRITE(),
		solana.Meta(b.owner).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(eventAuthority),
		solana.Meta(pumpProgram),
	}, data)

	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitPriceInstruction(swapComputeUnitPrice).Build(),
		computebudget.NewSetComputeUnitLimitInstruction(swapComputeUnitLimit).Build(),
		sellIx,
	}
	return b.sign(ixs, blockhash)
}

// createTokenAccountIx builds the idempotent associated token account
// create instruction; instruction tag 1 makes an existing account a
// no-op instead of an error.
func (b *TxBuilder) createTokenAccountIx(accts *swapAccounts) solana.Instruction {
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, solana.AccountMetaSlice{
		solana.Meta(b.owner).WRITE().SIGNER(),
		solana.Meta(accts.userTokenAcct).WRITE(),
		solana.Meta(b.owner),
		solana.Meta(accts.mint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	}, []byte{1})
}

func (b *TxBuilder) sign(ixs []solana.Instruction, blockhash solana.Hash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(b.owner))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(b.owner) {
			return &b.signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

func appendUint64(dst []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
)

// Game program instruction layout
const (
	// BuyTokenDiscriminator prefixes the buy-token payload.
	BuyTokenDiscriminator = uint8(1)

	// BaseUnitsPerToken converts a human purchase amount into base units.
	BaseUnitsPerToken = solana.LAMPORTS_PER_SOL

	buyTokenDataSize  = 1 + 8
	saveScoreDataSize = 8
)

// maxBaseUnits is 2^64, the first value that does not fit in a uint64.
const maxBaseUnits = float64(1 << 64)

// Programs names the on-chain addresses the game instructions reference.
type Programs struct {
	Program             solana.PublicKey
	ScoreAccount        solana.PublicKey
	TokenProgram        solana.PublicKey
	Mint                solana.PublicKey
	ProgramTokenAccount solana.PublicKey
	AuthoritySeed       string
}

// Authority derives the program's authority PDA from the seed string.
func (p Programs) Authority() (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte(p.AuthoritySeed)}, p.Program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive authority PDA: %w", err)
	}
	return pda, nil
}

// Instruction is a single program call. It is immutable once built:
// Accounts and Data hand out copies, so compiling a transaction cannot alter it.
type Instruction struct {
	programID solana.PublicKey
	accounts  []solana.AccountMeta
	data      []byte
}

var _ solana.Instruction = (*Instruction)(nil)

// NewInstruction builds an instruction from a program, payload and ordered account references.
func NewInstruction(programID solana.PublicKey, data []byte, accounts ...solana.AccountMeta) *Instruction {
	return &Instruction{
		programID: programID,
		accounts:  append([]solana.AccountMeta(nil), accounts...),
		data:      append([]byte(nil), data...),
	}
}

func (i *Instruction) ProgramID() solana.PublicKey {
	return i.programID
}

func (i *Instruction) Accounts() []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, len(i.accounts))
	for idx := range i.accounts {
		meta := i.accounts[idx]
		out[idx] = &meta
	}
	return out
}

func (i *Instruction) Data() ([]byte, error) {
	return append([]byte(nil), i.data...), nil
}

// ToBaseUnits converts a positive amount to base units (x 10^9), truncating
// any remainder.
func ToBaseUnits(amount float64) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	scaled := amount * float64(BaseUnitsPerToken)
	if scaled >= maxBaseUnits {
		return 0, fmt.Errorf("%w: %v overflows", ErrInvalidAmount, amount)
	}
	units := uint64(scaled)
	if units == 0 {
		return 0, fmt.Errorf("%w: %v is below one base unit", ErrInvalidAmount, amount)
	}
	return units, nil
}

// EncodeBuyTokenData produces the buy-token payload:
// [0]    = discriminator (1)
// [1..9] = base units (u64, little-endian)
func EncodeBuyTokenData(baseUnits uint64) []byte {
	buf := make([]byte, buyTokenDataSize)
	buf[0] = BuyTokenDiscriminator
	binary.LittleEndian.PutUint64(buf[1:], baseUnits)
	return buf
}

// EncodeSaveScoreData produces the save-score payload: the raw score as u64
// little-endian, with no discriminator.
func EncodeSaveScoreData(score uint64) []byte {
	buf := make([]byte, saveScoreDataSize)
	binary.LittleEndian.PutUint64(buf, score)
	return buf
}

// BuyTokenInstruction encodes a purchase of amount tokens paid by payer.
// Accounts, in order: payer (signer, writable), program token account (writable),
// payer token account (writable), token program, authority PDA.
func BuyTokenInstruction(p Programs, payer, payerTokenAccount solana.PublicKey, amount float64) (*Instruction, error) {
	units, err := ToBaseUnits(amount)
	if err != nil {
		return nil, err
	}
	authority, err := p.Authority()
	if err != nil {
		return nil, err
	}

	return NewInstruction(
		p.Program,
		EncodeBuyTokenData(units),
		solana.AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: true},
		solana.AccountMeta{PublicKey: p.ProgramTokenAccount, IsWritable: true},
		solana.AccountMeta{PublicKey: payerTokenAccount, IsWritable: true},
		solana.AccountMeta{PublicKey: p.TokenProgram},
		solana.AccountMeta{PublicKey: authority},
	), nil
}

// SaveScoreInstruction encodes a write of score into the well-known score account.
func SaveScoreInstruction(p Programs, score uint64) *Instruction {
	return NewInstruction(
		p.Program,
		EncodeSaveScoreData(score),
		solana.AccountMeta{PublicKey: p.ScoreAccount, IsWritable: true},
	)
}

// EncodeBuyToken resolves the payer's token account for the configured mint and
// encodes the purchase. The amount is validated before any network access.
func (c *Client) EncodeBuyToken(ctx context.Context, p Programs, payer solana.PublicKey, amount float64) (*Instruction, error) {
	if _, err := ToBaseUnits(amount); err != nil {
		return nil, err
	}

	tokenAccount, err := c.FindTokenAccount(ctx, payer, p.Mint)
	if err != nil {
		if errors.Is(err, ErrNoTokenAccount) {
			return nil, &AccountResolutionError{Owner: payer, Mint: p.Mint, Err: err}
		}
		return nil, err
	}

	return BuyTokenInstruction(p, payer, tokenAccount, amount)
}

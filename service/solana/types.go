package solana

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ConfirmationLevel is how far a submitted transaction must progress before
// Submit returns.
type ConfirmationLevel string

const (
	ConfirmationNone      ConfirmationLevel = "none"
	ConfirmationProcessed ConfirmationLevel = "processed"
	ConfirmationConfirmed ConfirmationLevel = "confirmed"
	ConfirmationFinalized ConfirmationLevel = "finalized"
)

// ParseConfirmationLevel converts a config string into a ConfirmationLevel.
func ParseConfirmationLevel(s string) (ConfirmationLevel, error) {
	switch l := ConfirmationLevel(s); l {
	case ConfirmationNone, ConfirmationProcessed, ConfirmationConfirmed, ConfirmationFinalized:
		return l, nil
	}
	return "", fmt.Errorf("unknown confirmation level %q", s)
}

// Commitment maps the level onto the RPC commitment used for preflight and reads.
// "none" still simulates at processed.
func (l ConfirmationLevel) Commitment() rpc.CommitmentType {
	switch l {
	case ConfirmationConfirmed:
		return rpc.CommitmentConfirmed
	case ConfirmationFinalized:
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentProcessed
	}
}

// rank orders levels so a status can be compared against the requested one.
func (l ConfirmationLevel) rank() int {
	switch l {
	case ConfirmationProcessed:
		return 1
	case ConfirmationConfirmed:
		return 2
	case ConfirmationFinalized:
		return 3
	default:
		return 0
	}
}

// AccountSnapshot is the raw state of an account as of the queried commitment.
// Snapshots are never cached; every query fetches a new one.
type AccountSnapshot struct {
	Address    solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte
}

// TokenAmount is a token balance in base units plus the mint's decimal exponent
// as reported by the network.
type TokenAmount struct {
	Raw      uint64
	Decimals uint8
}

// Float64 scales the raw amount by the mint's decimals.
func (a TokenAmount) Float64() float64 {
	return float64(a.Raw) / math.Pow10(int(a.Decimals))
}

// String renders the amount with exactly Decimals fractional digits.
func (a TokenAmount) String() string {
	if a.Decimals == 0 {
		return strconv.FormatUint(a.Raw, 10)
	}
	s := strconv.FormatUint(a.Raw, 10)
	d := int(a.Decimals)
	for len(s) <= d {
		s = "0" + s
	}
	return s[:len(s)-d] + "." + s[len(s)-d:]
}

// SignedTransaction is a compiled message bound to a freshness token and signed
// by every required signer.
type SignedTransaction struct {
	Transaction *solana.Transaction

	// Blockhash is the freshness token the signatures commit to.
	Blockhash solana.Hash

	// LastValidBlockHeight is the block height after which the network will
	// reject the transaction as expired.
	LastValidBlockHeight uint64
}

// Signature returns the transaction id (the fee payer's signature).
func (s *SignedTransaction) Signature() solana.Signature {
	if s == nil || s.Transaction == nil || len(s.Transaction.Signatures) == 0 {
		return solana.Signature{}
	}
	return s.Transaction.Signatures[0]
}

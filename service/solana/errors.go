package solana

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrEmptyInstructionList is returned when assembling a message with no instructions.
	ErrEmptyInstructionList = errors.New("transaction requires at least one instruction")

	// ErrNoTokenAccount is returned when an owner holds no token account for a mint.
	ErrNoTokenAccount = errors.New("no token account for owner and mint")

	// ErrInvalidAmount is returned when a purchase amount cannot be converted to base units.
	ErrInvalidAmount = errors.New("amount must be a positive finite number representable in base units")
)

// AccountResolutionError means an instruction could not be encoded because one
// of its accounts could not be resolved on chain.
type AccountResolutionError struct {
	Owner solana.PublicKey
	Mint  solana.PublicKey
	Err   error
}

func (e *AccountResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve token account for owner %s and mint %s: %v", e.Owner, e.Mint, e.Err)
}

func (e *AccountResolutionError) Unwrap() error { return e.Err }

// MissingSignerError means a message requires a signature from an address for
// which no signing key was supplied.
type MissingSignerError struct {
	Address solana.PublicKey
}

func (e *MissingSignerError) Error() string {
	return fmt.Sprintf("missing signing key for required signer %s", e.Address)
}

// SubmissionError is a terminal failure of a submitted transaction: the node
// rejected it, it failed on chain, or confirmation did not arrive in time.
type SubmissionError struct {
	// Signature is zero when the node rejected the transaction outright.
	Signature solana.Signature
	Reason    string
	TimedOut  bool
	Code      int
}

func (e *SubmissionError) Error() string {
	if e.Signature.IsZero() {
		return fmt.Sprintf("transaction rejected: %s", e.Reason)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Reason)
}

// AccountNotFoundError means the address has never been initialized.
type AccountNotFoundError struct {
	Address solana.PublicKey
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.Address)
}

// MalformedAccountDataError means account data is too short for the expected layout.
type MalformedAccountDataError struct {
	Address solana.PublicKey
	Want    int
	Got     int
}

func (e *MalformedAccountDataError) Error() string {
	return fmt.Sprintf("account %s data too short: need %d bytes, have %d", e.Address, e.Want, e.Got)
}

// NetworkUnavailableError wraps a transport failure talking to the RPC node.
type NetworkUnavailableError struct {
	Op  string
	Err error
}

func (e *NetworkUnavailableError) Error() string {
	return fmt.Sprintf("network unavailable during %s: %v", e.Op, e.Err)
}

func (e *NetworkUnavailableError) Unwrap() error { return e.Err }

package solana

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Message is an unsigned transaction: an ordered list of instructions compiled
// against a fee payer. The compiled account table holds each account once with
// the most permissive signer/writable flags any instruction gave it; the fee
// payer is always the first account and a signer.
type Message struct {
	feePayer     solana.PublicKey
	instructions int
	compiled     solana.Message
}

// Assemble compiles instructions into a Message paid for by feePayer.
// It does not touch the network; the freshness token is bound later by Sign.
func Assemble(instructions []solana.Instruction, feePayer solana.PublicKey) (*Message, error) {
	if len(instructions) == 0 {
		return nil, ErrEmptyInstructionList
	}
	if feePayer.IsZero() {
		return nil, errors.New("fee payer is required")
	}

	// The compiler groups accounts by the flags of their first occurrence and
	// never regroups after merging, so every occurrence must already carry the
	// most permissive flags. Copies also keep the caller's metas untouched.
	merged := make(map[solana.PublicKey]solana.AccountMeta)
	datas := make([][]byte, len(instructions))
	for idx, ix := range instructions {
		if ix == nil {
			return nil, fmt.Errorf("instruction %d is nil", idx)
		}
		data, err := ix.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to encode instruction %d: %w", idx, err)
		}
		datas[idx] = data
		for _, meta := range ix.Accounts() {
			m := merged[meta.PublicKey]
			m.PublicKey = meta.PublicKey
			m.IsSigner = m.IsSigner || meta.IsSigner
			m.IsWritable = m.IsWritable || meta.IsWritable
			merged[meta.PublicKey] = m
		}
	}
	if m, ok := merged[feePayer]; ok {
		m.IsSigner, m.IsWritable = true, true
		merged[feePayer] = m
	}

	frozen := make([]solana.Instruction, 0, len(instructions))
	for idx, ix := range instructions {
		metas := ix.Accounts()
		accounts := make([]solana.AccountMeta, 0, len(metas))
		for _, meta := range metas {
			accounts = append(accounts, merged[meta.PublicKey])
		}
		frozen = append(frozen, NewInstruction(ix.ProgramID(), datas[idx], accounts...))
	}

	tx, err := solana.NewTransaction(frozen, solana.Hash{}, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("failed to compile message: %w", err)
	}

	return &Message{
		feePayer:     feePayer,
		instructions: len(frozen),
		compiled:     tx.Message,
	}, nil
}

// FeePayer returns the account that pays the transaction fee.
func (m *Message) FeePayer() solana.PublicKey {
	return m.feePayer
}

// NumInstructions returns how many instructions the message carries.
func (m *Message) NumInstructions() int {
	return m.instructions
}

// AccountKeys returns the compiled account table in wire order.
func (m *Message) AccountKeys() []solana.PublicKey {
	return append([]solana.PublicKey(nil), m.compiled.AccountKeys...)
}

// Signers returns the addresses that must sign, fee payer first.
func (m *Message) Signers() []solana.PublicKey {
	n := int(m.compiled.Header.NumRequiredSignatures)
	return append([]solana.PublicKey(nil), m.compiled.AccountKeys[:n]...)
}

// IsSigner reports whether address must sign the message.
func (m *Message) IsSigner(address solana.PublicKey) bool {
	return m.compiled.IsSigner(address)
}

// IsWritable reports whether the message marks address writable.
func (m *Message) IsWritable(address solana.PublicKey) bool {
	writable, err := m.compiled.IsWritable(address)
	return err == nil && writable
}

// withBlockhash returns a fresh unsigned transaction bound to blockhash.
// The Message itself is left untouched so it can be re-signed after expiry.
func (m *Message) withBlockhash(blockhash solana.Hash) *solana.Transaction {
	msg := m.compiled
	msg.RecentBlockhash = blockhash
	return &solana.Transaction{Message: msg}
}

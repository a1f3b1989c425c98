package solana

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_Empty(t *testing.T) {
	_, err := Assemble(nil, newTestKey(t).PublicKey())
	assert.ErrorIs(t, err, ErrEmptyInstructionList)

	_, err = Assemble([]solana.Instruction{}, newTestKey(t).PublicKey())
	assert.ErrorIs(t, err, ErrEmptyInstructionList)
}

func TestAssemble_FeePayerFirstAndSigner(t *testing.T) {
	p := testPrograms()
	payer := newTestKey(t).PublicKey()

	msg, err := Assemble([]solana.Instruction{SaveScoreInstruction(p, 42)}, payer)
	require.NoError(t, err)

	assert.Equal(t, payer, msg.FeePayer())
	assert.Equal(t, payer, msg.AccountKeys()[0])
	assert.Equal(t, []solana.PublicKey{payer}, msg.Signers())
	assert.True(t, msg.IsSigner(payer))
	assert.True(t, msg.IsWritable(payer))
	assert.True(t, msg.IsWritable(p.ScoreAccount))
	assert.False(t, msg.IsSigner(p.ScoreAccount))
	assert.False(t, msg.IsWritable(p.Program))
	assert.Equal(t, 1, msg.NumInstructions())
}

func TestAssemble_MergesDuplicateAccounts(t *testing.T) {
	p := testPrograms()
	payer := newTestKey(t).PublicKey()
	shared := newTestKey(t).PublicKey()

	readOnly := NewInstruction(p.Program, []byte{1}, solana.AccountMeta{PublicKey: shared})
	writable := NewInstruction(p.Program, []byte{2}, solana.AccountMeta{PublicKey: shared, IsWritable: true})

	msg, err := Assemble([]solana.Instruction{readOnly, writable}, payer)
	require.NoError(t, err)

	count := 0
	for _, key := range msg.AccountKeys() {
		if key.Equals(shared) {
			count++
		}
	}
	assert.Equal(t, 1, count, "shared account should appear once")
	assert.True(t, msg.IsWritable(shared), "writable in any instruction means writable")
	assert.Equal(t, 2, msg.NumInstructions())

	// The caller's instruction is untouched by compilation.
	assert.False(t, readOnly.Accounts()[0].IsWritable)
}

func TestAssemble_SignerReferencedByInstruction(t *testing.T) {
	p := testPrograms()
	payer := newTestKey(t).PublicKey()
	buyer := newTestKey(t).PublicKey()

	ix, err := BuyTokenInstruction(p, buyer, newTestKey(t).PublicKey(), 1)
	require.NoError(t, err)

	msg, err := Assemble([]solana.Instruction{ix}, payer)
	require.NoError(t, err)

	signers := msg.Signers()
	require.Len(t, signers, 2)
	assert.Equal(t, payer, signers[0])
	assert.Equal(t, buyer, signers[1])
}

func TestAssemble_WritableAfterReadOnlySigner(t *testing.T) {
	p := testPrograms()
	payer := newTestKey(t).PublicKey()
	first := newTestKey(t).PublicKey()
	second := newTestKey(t).PublicKey()

	readOnlySigners := NewInstruction(p.Program, []byte{1},
		solana.AccountMeta{PublicKey: second, IsSigner: true},
		solana.AccountMeta{PublicKey: first, IsSigner: true},
	)
	writesFirst := NewInstruction(p.Program, []byte{2},
		solana.AccountMeta{PublicKey: first, IsWritable: true},
	)

	msg, err := Assemble([]solana.Instruction{readOnlySigners, writesFirst}, payer)
	require.NoError(t, err)

	assert.True(t, msg.IsSigner(first))
	assert.True(t, msg.IsSigner(second))
	assert.True(t, msg.IsWritable(first), "writable in a later instruction means writable")
	assert.False(t, msg.IsWritable(second))
	assert.Len(t, msg.Signers(), 3)
	assert.Equal(t, payer, msg.Signers()[0])
}

func TestAssemble_FeePayerReferencedAsNonSigner(t *testing.T) {
	tests := []struct {
		name     string
		writable bool
	}{
		{name: "read-only", writable: false},
		{name: "writable", writable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPrograms()
			payer := newTestKey(t).PublicKey()

			ix := NewInstruction(p.Program, []byte{1},
				solana.AccountMeta{PublicKey: p.ScoreAccount, IsWritable: true},
				solana.AccountMeta{PublicKey: payer, IsWritable: tt.writable},
			)

			msg, err := Assemble([]solana.Instruction{ix}, payer)
			require.NoError(t, err)

			count := 0
			for _, key := range msg.AccountKeys() {
				if key.Equals(payer) {
					count++
				}
			}
			assert.Equal(t, 1, count, "fee payer should appear once")
			assert.Equal(t, payer, msg.AccountKeys()[0])
			assert.Equal(t, []solana.PublicKey{payer}, msg.Signers())
			assert.True(t, msg.IsSigner(payer))
			assert.True(t, msg.IsWritable(payer))
			assert.False(t, ix.Accounts()[1].IsSigner)
		})
	}
}

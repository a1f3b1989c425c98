package solana

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfirmationLevel(t *testing.T) {
	for _, s := range []string{"none", "processed", "confirmed", "finalized"} {
		level, err := ParseConfirmationLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(level))
	}

	_, err := ParseConfirmationLevel("rooted")
	assert.Error(t, err)
}

func TestConfirmationLevel_Commitment(t *testing.T) {
	assert.Equal(t, rpc.CommitmentProcessed, ConfirmationNone.Commitment())
	assert.Equal(t, rpc.CommitmentProcessed, ConfirmationProcessed.Commitment())
	assert.Equal(t, rpc.CommitmentConfirmed, ConfirmationConfirmed.Commitment())
	assert.Equal(t, rpc.CommitmentFinalized, ConfirmationFinalized.Commitment())
}

func TestTokenAmount(t *testing.T) {
	tests := []struct {
		amount TokenAmount
		str    string
		f      float64
	}{
		{TokenAmount{Raw: 1_500_000_000, Decimals: 9}, "1.500000000", 1.5},
		{TokenAmount{Raw: 5, Decimals: 3}, "0.005", 0.005},
		{TokenAmount{Raw: 0, Decimals: 2}, "0.00", 0},
		{TokenAmount{Raw: 42, Decimals: 0}, "42", 42},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.amount.String())
			assert.InDelta(t, tt.f, tt.amount.Float64(), 1e-12)
		})
	}
}

func TestSignedTransaction_Signature(t *testing.T) {
	var nilTx *SignedTransaction
	assert.True(t, nilTx.Signature().IsZero())
	assert.True(t, (&SignedTransaction{Transaction: &solana.Transaction{}}).Signature().IsZero())
}

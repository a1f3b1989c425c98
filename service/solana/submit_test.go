package solana

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(level rpc.ConfirmationStatusType) *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{Slot: 10, ConfirmationStatus: level}
}

func signedScore(t *testing.T, client *Client) *SignedTransaction {
	t.Helper()
	payer := newTestKey(t)
	msg, err := Assemble([]solana.Instruction{SaveScoreInstruction(testPrograms(), 42)}, payer.PublicKey())
	require.NoError(t, err)
	signed, err := client.Sign(context.Background(), msg, []solana.PrivateKey{payer})
	require.NoError(t, err)
	return signed
}

func fastClient(mock *MockRPCClient) *Client {
	return newTestClient(mock,
		WithPollInterval(time.Millisecond),
		WithConfirmationTimeout(200*time.Millisecond),
	)
}

func TestSubmit_NoneReturnsImmediately(t *testing.T) {
	mock := NewMockRPCClient()
	client := fastClient(mock)
	signed := signedScore(t, client)

	sig, err := client.Submit(context.Background(), signed, ConfirmationNone)
	require.NoError(t, err)
	assert.Equal(t, signed.Signature(), sig)
	assert.Zero(t, mock.StatusPolls())
	require.Len(t, mock.SendOpts(), 1)
	assert.False(t, mock.SendOpts()[0].SkipPreflight)
	assert.Equal(t, rpc.CommitmentProcessed, mock.SendOpts()[0].PreflightCommitment)
}

func TestSubmit_PreflightNeverAboveBlockhash(t *testing.T) {
	tests := []struct {
		level ConfirmationLevel
		want  rpc.CommitmentType
	}{
		{ConfirmationNone, rpc.CommitmentProcessed},
		{ConfirmationProcessed, rpc.CommitmentProcessed},
		{ConfirmationConfirmed, rpc.CommitmentConfirmed},
		{ConfirmationFinalized, rpc.CommitmentConfirmed},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			mock := NewMockRPCClient()
			mock.Statuses = []*rpc.SignatureStatusesResult{status(rpc.ConfirmationStatusFinalized)}
			client := fastClient(mock)
			signed := signedScore(t, client)

			_, err := client.Submit(context.Background(), signed, tt.level)
			require.NoError(t, err)

			require.Len(t, mock.SendOpts(), 1)
			require.Equal(t, []rpc.CommitmentType{rpc.CommitmentConfirmed}, mock.BlockhashCommitments())
			assert.Equal(t, tt.want, mock.SendOpts()[0].PreflightCommitment)
		})
	}
}

func TestSubmit_WaitsForLevel(t *testing.T) {
	mock := NewMockRPCClient()
	mock.Statuses = []*rpc.SignatureStatusesResult{
		nil,
		status(rpc.ConfirmationStatusProcessed),
		status(rpc.ConfirmationStatusConfirmed),
	}
	client := fastClient(mock)
	signed := signedScore(t, client)

	sig, err := client.Submit(context.Background(), signed, ConfirmationConfirmed)
	require.NoError(t, err)
	assert.Equal(t, signed.Signature(), sig)
	assert.Equal(t, 3, mock.StatusPolls())
	assert.Equal(t, rpc.CommitmentConfirmed, mock.SendOpts()[0].PreflightCommitment)
	assert.Len(t, mock.Sent(), 1, "a transaction is sent exactly once")
}

func TestSubmit_HigherLevelSatisfiesLower(t *testing.T) {
	mock := NewMockRPCClient()
	mock.Statuses = []*rpc.SignatureStatusesResult{status(rpc.ConfirmationStatusFinalized)}
	client := fastClient(mock)

	_, err := client.Submit(context.Background(), signedScore(t, client), ConfirmationProcessed)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.StatusPolls())
}

func TestSubmit_RootedWithoutConfirmationStatus(t *testing.T) {
	mock := NewMockRPCClient()
	mock.Statuses = []*rpc.SignatureStatusesResult{{Slot: 10}}
	client := fastClient(mock)

	_, err := client.Submit(context.Background(), signedScore(t, client), ConfirmationFinalized)
	require.NoError(t, err)
}

func TestSubmit_FailedOnChain(t *testing.T) {
	mock := NewMockRPCClient()
	mock.Statuses = []*rpc.SignatureStatusesResult{{
		Slot:               10,
		ConfirmationStatus: rpc.ConfirmationStatusProcessed,
		Err: map[string]interface{}{
			"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(1)}},
		},
	}}
	client := fastClient(mock)
	signed := signedScore(t, client)

	sig, err := client.Submit(context.Background(), signed, ConfirmationConfirmed)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, signed.Signature(), sig)
	assert.Equal(t, signed.Signature(), subErr.Signature)
	assert.Equal(t, "instruction 0 failed: custom program error 0x1", subErr.Reason)
	assert.False(t, subErr.TimedOut)
}

func TestSubmit_BlockhashExpired(t *testing.T) {
	mock := NewMockRPCClient()
	mock.Statuses = []*rpc.SignatureStatusesResult{nil}
	client := fastClient(mock)
	signed := signedScore(t, client)
	mock.BlockHeight = signed.LastValidBlockHeight + 1

	_, err := client.Submit(context.Background(), signed, ConfirmationConfirmed)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, subErr.Reason, "blockhash expired")
	assert.False(t, subErr.TimedOut)
}

func TestSubmit_Timeout(t *testing.T) {
	mock := NewMockRPCClient()
	mock.Statuses = []*rpc.SignatureStatusesResult{status(rpc.ConfirmationStatusProcessed)}
	client := newTestClient(mock,
		WithPollInterval(time.Millisecond),
		WithConfirmationTimeout(20*time.Millisecond),
	)
	signed := signedScore(t, client)

	sig, err := client.Submit(context.Background(), signed, ConfirmationFinalized)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.TimedOut)
	assert.Equal(t, signed.Signature(), sig)
	assert.Len(t, mock.Sent(), 1, "timeouts never resend")
}

func TestSubmit_PollErrorsAreRetriedUntilTimeout(t *testing.T) {
	mock := NewMockRPCClient()
	mock.StatusErr = errConnRefused
	client := newTestClient(mock,
		WithPollInterval(time.Millisecond),
		WithConfirmationTimeout(20*time.Millisecond),
	)

	_, err := client.Submit(context.Background(), signedScore(t, client), ConfirmationConfirmed)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.TimedOut)
	assert.Greater(t, mock.StatusPolls(), 1)
}

func TestSubmit_Rejected(t *testing.T) {
	mock := NewMockRPCClient()
	mock.SendErr = &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
	}
	client := fastClient(mock)

	sig, err := client.Submit(context.Background(), signedScore(t, client), ConfirmationConfirmed)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, sig.IsZero())
	assert.True(t, subErr.Signature.IsZero())
	assert.Equal(t, -32002, subErr.Code)
	assert.Contains(t, subErr.Error(), "transaction rejected")
	assert.Zero(t, mock.StatusPolls())
}

func TestSubmit_SendTransportFailure(t *testing.T) {
	mock := NewMockRPCClient()
	mock.SendErr = errConnRefused
	client := fastClient(mock)

	_, err := client.Submit(context.Background(), signedScore(t, client), ConfirmationConfirmed)
	var netErr *NetworkUnavailableError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "send transaction", netErr.Op)
}

func TestStatusLevel(t *testing.T) {
	one := uint64(1)
	assert.Equal(t, ConfirmationFinalized, statusLevel(&rpc.SignatureStatusesResult{}))
	assert.Equal(t, ConfirmationProcessed, statusLevel(&rpc.SignatureStatusesResult{Confirmations: &one}))
	assert.Equal(t, ConfirmationConfirmed, statusLevel(status(rpc.ConfirmationStatusConfirmed)))
}

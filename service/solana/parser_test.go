package solana

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
)

// decodeErr mirrors how the RPC layer hands us status errors: plain JSON.
func decodeErr(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad fixture %s: %v", raw, err)
	}
	return v
}

func TestDescribeTransactionError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"nil", `null`, ""},
		{"bare string", `"BlockhashNotFound"`, "BlockhashNotFound"},
		{"instruction error string", `{"InstructionError":[0,"InvalidAccountData"]}`, "instruction 0 failed: InvalidAccountData"},
		{"custom program error", `{"InstructionError":[1,{"Custom":6001}]}`, "instruction 1 failed: custom program error 0x1771"},
		{"other instruction detail", `{"InstructionError":[2,{"BorshIoError":"bad"}]}`, `instruction 2 failed: {"BorshIoError":"bad"}`},
		{"malformed instruction error", `{"InstructionError":"oops"}`, `InstructionError: "oops"`},
		{"keyed detail", `{"InsufficientFundsForRent":{"account_index":2}}`, `InsufficientFundsForRent: {"account_index":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeTransactionError(decodeErr(t, tt.raw)))
		})
	}
}

func TestRejectionReason(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		err := &jsonrpc.RPCError{Code: -32002, Message: "Transaction signature verification failure"}
		assert.Equal(t, "Transaction signature verification failure", rejectionReason(err))
	})

	t.Run("includes simulated error", func(t *testing.T) {
		err := &jsonrpc.RPCError{
			Code:    -32002,
			Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1",
			Data: map[string]interface{}{
				"err": decodeErr(t, `{"InstructionError":[0,{"Custom":1}]}`),
			},
		}
		assert.Equal(t,
			"Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1 (instruction 0 failed: custom program error 0x1)",
			rejectionReason(err),
		)
	})
}

func TestAsRPCError(t *testing.T) {
	rpcErr, ok := asRPCError(&jsonrpc.RPCError{Code: -32602})
	assert.True(t, ok)
	assert.Equal(t, -32602, rpcErr.Code)

	_, ok = asRPCError(errConnRefused)
	assert.False(t, ok)
}

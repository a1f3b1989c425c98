package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// describeTransactionError renders the "err" field of a signature status or a
// preflight failure into a readable reason.
//
// Shapes seen on the wire:
//
//	"BlockhashNotFound"
//	{"InstructionError": [0, "InvalidAccountData"]}
//	{"InstructionError": [1, {"Custom": 6001}]}
//	{"InsufficientFundsForRent": {"account_index": 2}}
func describeTransactionError(raw interface{}) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if k == "InstructionError" {
				parts = append(parts, describeInstructionError(t[k]))
				continue
			}
			if t[k] == nil {
				parts = append(parts, k)
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", k, compactJSON(t[k])))
		}
		return strings.Join(parts, "; ")
	default:
		return compactJSON(raw)
	}
}

func describeInstructionError(v interface{}) string {
	tuple, ok := v.([]interface{})
	if !ok || len(tuple) != 2 {
		return "InstructionError: " + compactJSON(v)
	}

	index, ok := jsonNumber(tuple[0])
	if !ok {
		return "InstructionError: " + compactJSON(v)
	}

	switch e := tuple[1].(type) {
	case string:
		return fmt.Sprintf("instruction %d failed: %s", index, e)
	case map[string]interface{}:
		if custom, ok := e["Custom"]; ok && len(e) == 1 {
			if code, ok := jsonNumber(custom); ok {
				return fmt.Sprintf("instruction %d failed: custom program error 0x%x", index, code)
			}
		}
		return fmt.Sprintf("instruction %d failed: %s", index, compactJSON(e))
	default:
		return fmt.Sprintf("instruction %d failed: %s", index, compactJSON(e))
	}
}

// asRPCError reports whether err is a JSON-RPC error returned by the node
// (as opposed to a transport failure).
func asRPCError(err error) (*jsonrpc.RPCError, bool) {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// rejectionReason builds a reason string from a node-side error, including the
// simulated transaction error when the node attached one.
func rejectionReason(rpcErr *jsonrpc.RPCError) string {
	reason := rpcErr.Message
	if data, ok := rpcErr.Data.(map[string]interface{}); ok {
		if txErr, ok := data["err"]; ok && txErr != nil {
			reason = fmt.Sprintf("%s (%s)", reason, describeTransactionError(txErr))
		}
	}
	return reason
}

func jsonNumber(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func compactJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

package main

import (
	"bytes"
	"testing"

	"github.com/brojonat/arcadewallet/service/nats"
	"github.com/itchyny/gojq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderJQ(t *testing.T) {
	tests := []struct {
		name string
		expr string
		in   interface{}
		want string
	}{
		{"raw string", ".signature", map[string]string{"signature": "abc"}, "abc\n"},
		{"object", "{s: .score}", map[string]uint64{"score": 42}, "{\"s\":42}\n"},
		{"large integer keeps precision", ".lamports", map[string]uint64{"lamports": 18446744073709551615}, "18446744073709551615\n"},
		{"multiple results", ".[]", []int{1, 2}, "1\n2\n"},
		{"no results", "empty", map[string]int{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := compileJQ(tt.expr)
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, renderJQ(&out, code, tt.in))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestCompileJQ_Invalid(t *testing.T) {
	_, err := compileJQ(".[")
	assert.Error(t, err)
}

func TestMatchesJQ(t *testing.T) {
	score := uint64(9)
	event := &nats.TransactionEvent{
		Operation: "save_score",
		Signer:    "addr",
		Score:     &score,
		Status:    nats.StatusFailed,
		Reason:    "custom program error: 0x1",
	}

	compile := func(exprs ...string) []*gojq.Code {
		t.Helper()
		var codes []*gojq.Code
		for _, e := range exprs {
			code, err := compileJQ(e)
			require.NoError(t, err)
			codes = append(codes, code)
		}
		return codes
	}

	ok, err := matchesJQ(nil, event)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = matchesJQ(compile(`.status == "failed"`, `.score > 5`), event)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = matchesJQ(compile(`.status == "failed"`, `.operation == "buy_token"`), event)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = matchesJQ(compile(`.amount`), event)
	require.NoError(t, err)
	assert.False(t, ok, "missing field is null")
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy(map[string]interface{}{}))
}

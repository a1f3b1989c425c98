package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/arcadewallet/service/game"
	"github.com/brojonat/arcadewallet/service/keys"
	"github.com/brojonat/arcadewallet/service/metrics"
	"github.com/brojonat/arcadewallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var testPrograms = solana.Programs{
	Program:             solanago.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"),
	ScoreAccount:        solanago.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo"),
	TokenProgram:        solanago.TokenProgramID,
	Mint:                solanago.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	ProgramTokenAccount: solanago.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"),
	AuthoritySeed:       "authority",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer serves a real Engine backed by an in-memory RPC mock.
func newTestServer(t *testing.T) (http.Handler, *solana.MockRPCClient) {
	t.Helper()
	mock := solana.NewMockRPCClient()
	chain := solana.NewClient(mock, "test", nil, testLogger(),
		solana.WithPollInterval(time.Millisecond),
		solana.WithConfirmationTimeout(200*time.Millisecond),
	)
	engine := game.NewEngine(chain, testPrograms, solana.ConfirmationConfirmed, nil, nil, testLogger())
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return New(":0", engine, time.Second, m, testLogger()).Handler(), mock
}

func testHandle(t *testing.T) (string, solanago.PublicKey) {
	t.Helper()
	key, err := keys.DeriveSigner(testMnemonic, "")
	require.NoError(t, err)
	return keys.EncodeSigner(key), key.PublicKey()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestDeriveSigner(t *testing.T) {
	h, _ := newTestServer(t)
	handle, addr := testHandle(t)

	rec, resp := do(t, h, "POST", "/api/v1/signers", map[string]string{"mnemonic": testMnemonic})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, handle, resp["signer"])
	assert.Equal(t, addr.String(), resp["address"])

	rec, resp = do(t, h, "POST", "/api/v1/signers", map[string]string{"mnemonic": "one two three"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "key_derivation", resp["kind"])

	rec, _ = do(t, h, "POST", "/api/v1/signers", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddressAndBalances(t *testing.T) {
	h, mock := newTestServer(t)
	handle, addr := testHandle(t)
	mock.SetBalance(addr, 5_000_000_000)

	rec, resp := do(t, h, "POST", "/api/v1/address", map[string]string{"signer": handle})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, addr.String(), resp["address"])

	rec, resp = do(t, h, "POST", "/api/v1/balance", map[string]string{"signer": handle})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5_000_000_000), resp["lamports"])

	rec, resp = do(t, h, "POST", "/api/v1/token-balance", map[string]string{"signer": handle})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), resp["balance"])
}

func TestSaveAndGetScore(t *testing.T) {
	h, mock := newTestServer(t)
	handle, _ := testHandle(t)

	rec, resp := do(t, h, "POST", "/api/v1/score", map[string]interface{}{"signer": handle, "score": 42})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", resp["confirmation"])
	require.Len(t, mock.Sent(), 1)
	assert.Equal(t, mock.Sent()[0].Signatures[0].String(), resp["signature"])

	rec, resp = do(t, h, "GET", "/api/v1/score", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "mock ledger does not apply transactions")
	assert.Equal(t, "account_not_found", resp["kind"])

	mock.SetAccountData(testPrograms.ScoreAccount, testPrograms.Program, solana.EncodeSaveScoreData(42))
	rec, resp = do(t, h, "GET", "/api/v1/score", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), resp["score"])
}

func TestBuyToken_NoTokenAccount(t *testing.T) {
	h, mock := newTestServer(t)
	handle, _ := testHandle(t)

	rec, resp := do(t, h, "POST", "/api/v1/buy", map[string]interface{}{"signer": handle, "amount": 1.5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "account_resolution", resp["kind"])
	assert.Empty(t, mock.Sent())
}

func TestBuyToken_Success(t *testing.T) {
	h, mock := newTestServer(t)
	handle, addr := testHandle(t)
	mock.AddTokenAccount(addr, solanago.NewWallet().PublicKey(), 0, 9)

	rec, resp := do(t, h, "POST", "/api/v1/buy", map[string]interface{}{"signer": handle, "amount": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, resp["signature"])
}

func TestNetworkUnavailable(t *testing.T) {
	h, mock := newTestServer(t)
	handle, _ := testHandle(t)
	mock.BlockhashErr = errors.New("dial tcp: connection refused")

	rec, resp := do(t, h, "POST", "/api/v1/score", map[string]interface{}{"signer": handle, "score": 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "network_unavailable", resp["kind"])
}

func TestRequestValidation(t *testing.T) {
	h, _ := newTestServer(t)
	handle, _ := testHandle(t)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"malformed json", "/api/v1/address", `{"signer":`, http.StatusBadRequest},
		{"unknown field", "/api/v1/address", `{"signer":"x","extra":1}`, http.StatusBadRequest},
		{"trailing data", "/api/v1/address", `{"signer":"x"}{}`, http.StatusBadRequest},
		{"missing signer", "/api/v1/balance", map[string]string{}, http.StatusBadRequest},
		{"oversized signer", "/api/v1/balance", map[string]string{"signer": strings.Repeat("1", 200)}, http.StatusBadRequest},
		{"bad signer", "/api/v1/balance", map[string]string{"signer": "not-base58-0OIl"}, http.StatusBadRequest},
		{"zero amount", "/api/v1/buy", map[string]interface{}{"signer": handle, "amount": 0}, http.StatusBadRequest},
		{"negative score", "/api/v1/score", `{"signer":"` + handle + `","score":-1}`, http.StatusBadRequest},
		{"huge body", "/api/v1/signers", `{"mnemonic":"` + strings.Repeat("a", maxRequestBodySize) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, "POST", tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestErrorStatus(t *testing.T) {
	sig := solanago.Signature{1}
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{&keys.KeyDerivationError{Reason: "bad"}, http.StatusBadRequest, "key_derivation"},
		{fmt.Errorf("wrapped: %w", solana.ErrInvalidAmount), http.StatusBadRequest, "construction"},
		{&solana.MissingSignerError{}, http.StatusBadRequest, "construction"},
		{&solana.AccountResolutionError{Err: solana.ErrNoTokenAccount}, http.StatusUnprocessableEntity, "account_resolution"},
		{&solana.AccountNotFoundError{}, http.StatusNotFound, "account_not_found"},
		{&solana.SubmissionError{Reason: "rejected"}, http.StatusBadGateway, "submission"},
		{&solana.SubmissionError{Signature: sig, TimedOut: true}, http.StatusGatewayTimeout, "submission_timeout"},
		{&solana.NetworkUnavailableError{Op: "x", Err: errors.New("eof")}, http.StatusServiceUnavailable, "network_unavailable"},
		{&solana.MalformedAccountDataError{}, http.StatusBadGateway, "malformed_account_data"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			status, kind := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestHealthMetricsAndCORS(t *testing.T) {
	h, _ := newTestServer(t)

	rec, _ := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = do(t, h, "OPTIONS", "/api/v1/score", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, h, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSaveScore_BlockhashCanceled(t *testing.T) {
	h, mock := newTestServer(t)
	handle, _ := testHandle(t)
	mock.BlockhashErr = context.Canceled

	rec, _ := do(t, h, "POST", "/api/v1/score", map[string]interface{}{"signer": handle, "score": 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

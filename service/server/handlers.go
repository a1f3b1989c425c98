package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/brojonat/arcadewallet/service/game"
	"github.com/brojonat/arcadewallet/service/keys"
	"github.com/brojonat/arcadewallet/service/solana"
)

const (
	maxRequestBodySize = 64 << 10 // mnemonics and signer handles are small
	maxMnemonicLength  = 1024
	maxSignerLength    = 128 // a base58 64-byte keypair is at most 88 chars
)

// Game is the boundary surface served over HTTP. *game.Engine implements it.
type Game interface {
	DeriveSigner(mnemonic, passphrase string) (string, error)
	AddressOf(handle string) (string, error)
	GetNativeBalance(ctx context.Context, handle string) (uint64, error)
	GetTokenBalance(ctx context.Context, handle string) (float64, error)
	BuyToken(ctx context.Context, handle string, amount float64) (*game.Receipt, error)
	SaveScore(ctx context.Context, handle string, score uint64) (*game.Receipt, error)
	GetScore(ctx context.Context) (uint64, error)
}

var _ Game = (*game.Engine)(nil)

type deriveSignerRequest struct {
	Mnemonic   string `json:"mnemonic"`
	Passphrase string `json:"passphrase"`
}

type signerRequest struct {
	Signer string `json:"signer"`
}

type buyTokenRequest struct {
	Signer string  `json:"signer"`
	Amount float64 `json:"amount"`
}

type saveScoreRequest struct {
	Signer string `json:"signer"`
	Score  uint64 `json:"score"`
}

type receiptResponse struct {
	Signature    string `json:"signature"`
	Confirmation string `json:"confirmation"`
}

// handleDeriveSigner returns a handler that turns a mnemonic into a signer handle.
// POST /api/v1/signers
func handleDeriveSigner(g Game, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req deriveSignerRequest
		if !decodeRequest(w, r, &req, logger) {
			return
		}
		if req.Mnemonic == "" {
			writeError(w, "mnemonic is required", http.StatusBadRequest)
			return
		}
		if len(req.Mnemonic) > maxMnemonicLength || len(req.Passphrase) > maxMnemonicLength {
			writeError(w, "mnemonic or passphrase too long", http.StatusBadRequest)
			return
		}

		handle, err := g.DeriveSigner(req.Mnemonic, req.Passphrase)
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		address, err := g.AddressOf(handle)
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		logger.InfoContext(r.Context(), "signer derived", "address", address)
		writeJSON(w, map[string]string{
			"signer":  handle,
			"address": address,
		}, http.StatusCreated)
	})
}

// handleAddress returns a handler that reports the address of a signer.
// POST /api/v1/address
func handleAddress(g Game, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req signerRequest
		if !decodeRequest(w, r, &req, logger) || !validateSigner(w, req.Signer) {
			return
		}

		address, err := g.AddressOf(req.Signer)
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		writeJSON(w, map[string]string{"address": address}, http.StatusOK)
	})
}

// handleNativeBalance returns a handler that reports a signer's native balance.
// POST /api/v1/balance
func handleNativeBalance(g Game, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req signerRequest
		if !decodeRequest(w, r, &req, logger) || !validateSigner(w, req.Signer) {
			return
		}

		lamports, err := g.GetNativeBalance(r.Context(), req.Signer)
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		writeJSON(w, map[string]interface{}{"lamports": lamports}, http.StatusOK)
	})
}

// handleTokenBalance returns a handler that reports a signer's game token balance.
// POST /api/v1/token-balance
func handleTokenBalance(g Game, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req signerRequest
		if !decodeRequest(w, r, &req, logger) || !validateSigner(w, req.Signer) {
			return
		}

		balance, err := g.GetTokenBalance(r.Context(), req.Signer)
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		writeJSON(w, map[string]interface{}{"balance": balance}, http.StatusOK)
	})
}

// handleBuyToken returns a handler that buys game tokens for a signer.
// POST /api/v1/buy
func handleBuyToken(g Game, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req buyTokenRequest
		if !decodeRequest(w, r, &req, logger) || !validateSigner(w, req.Signer) {
			return
		}
		if req.Amount <= 0 || math.IsInf(req.Amount, 0) {
			writeError(w, "amount must be positive", http.StatusBadRequest)
			return
		}

		receipt, err := g.BuyToken(r.Context(), req.Signer, req.Amount)
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		writeJSON(w, toReceiptResponse(receipt), http.StatusOK)
	})
}

// handleSaveScore returns a handler that saves a score signed by a signer.
// POST /api/v1/score
func handleSaveScore(g Game, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req saveScoreRequest
		if !decodeRequest(w, r, &req, logger) || !validateSigner(w, req.Signer) {
			return
		}

		receipt, err := g.SaveScore(r.Context(), req.Signer, req.Score)
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		writeJSON(w, toReceiptResponse(receipt), http.StatusOK)
	})
}

// handleGetScore returns a handler that reads the stored score.
// GET /api/v1/score
func handleGetScore(g Game, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		score, err := g.GetScore(r.Context())
		if err != nil {
			writeGameError(w, r, err, logger)
			return
		}

		writeJSON(w, map[string]interface{}{"score": score}, http.StatusOK)
	})
}

func toReceiptResponse(receipt *game.Receipt) receiptResponse {
	return receiptResponse{
		Signature:    receipt.Signature.String(),
		Confirmation: string(receipt.Confirmation),
	}
}

// decodeRequest decodes a bounded JSON body into dst, writing a 400 on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		logger.DebugContext(r.Context(), "invalid request body", "path", r.URL.Path, "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, "request body must contain a single JSON object", http.StatusBadRequest)
		return false
	}
	return true
}

// validateSigner performs cheap checks before a handle is decoded.
func validateSigner(w http.ResponseWriter, signer string) bool {
	if signer == "" {
		writeError(w, "signer is required", http.StatusBadRequest)
		return false
	}
	if len(signer) > maxSignerLength {
		writeError(w, fmt.Sprintf("signer too long: maximum length is %d characters", maxSignerLength), http.StatusBadRequest)
		return false
	}
	return true
}

// errorStatus maps an engine error onto an HTTP status and a stable error kind.
func errorStatus(err error) (int, string) {
	var (
		resolutionErr *solana.AccountResolutionError
		missingErr    *solana.MissingSignerError
		submissionErr *solana.SubmissionError
		networkErr    *solana.NetworkUnavailableError
		notFoundErr   *solana.AccountNotFoundError
		malformedErr  *solana.MalformedAccountDataError
	)

	switch {
	case errors.Is(err, keys.ErrKeyDerivation):
		return http.StatusBadRequest, "key_derivation"
	case errors.Is(err, solana.ErrInvalidAmount),
		errors.Is(err, solana.ErrEmptyInstructionList),
		errors.As(err, &missingErr):
		return http.StatusBadRequest, "construction"
	case errors.As(err, &resolutionErr):
		return http.StatusUnprocessableEntity, "account_resolution"
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "account_not_found"
	case errors.As(err, &submissionErr):
		if submissionErr.TimedOut {
			return http.StatusGatewayTimeout, "submission_timeout"
		}
		return http.StatusBadGateway, "submission"
	case errors.As(err, &networkErr):
		return http.StatusServiceUnavailable, "network_unavailable"
	case errors.As(err, &malformedErr):
		return http.StatusBadGateway, "malformed_account_data"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeGameError logs err and writes it with its mapped status.
func writeGameError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status, kind := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "kind", kind, "error", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}

	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	}
	var submissionErr *solana.SubmissionError
	if errors.As(err, &submissionErr) && !submissionErr.Signature.IsZero() {
		body["signature"] = submissionErr.Signature.String()
	}
	writeJSON(w, body, status)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{
		"error": message,
		"kind":  "bad_request",
	}, statusCode)
}

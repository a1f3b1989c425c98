// Package client is the HTTP client for the arcadewallet sidecar server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Error kinds reported by the server.
const (
	KindBadRequest           = "bad_request"
	KindKeyDerivation        = "key_derivation"
	KindConstruction         = "construction"
	KindAccountResolution    = "account_resolution"
	KindAccountNotFound      = "account_not_found"
	KindSubmission           = "submission"
	KindSubmissionTimeout    = "submission_timeout"
	KindNetworkUnavailable   = "network_unavailable"
	KindMalformedAccountData = "malformed_account_data"
)

// Receipt identifies a transaction the server submitted.
type Receipt struct {
	Signature    string `json:"signature"`
	Confirmation string `json:"confirmation"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string

	// Signature is set when a transaction was sent but did not succeed.
	Signature string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed (%s): %s", e.Kind, e.Message)
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// Client is the HTTP client for the arcadewallet sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new sidecar client. Mutations block until the server's
// confirmation policy is met, so the default timeout is generous.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// DeriveSigner derives a signer handle from a mnemonic and passphrase.
func (c *Client) DeriveSigner(ctx context.Context, mnemonic, passphrase string) (string, error) {
	var resp struct {
		Signer  string `json:"signer"`
		Address string `json:"address"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/signers", map[string]string{
		"mnemonic":   mnemonic,
		"passphrase": passphrase,
	}, http.StatusCreated, &resp)
	if err != nil {
		return "", err
	}

	c.logger.Debug("signer derived", "address", resp.Address)
	return resp.Signer, nil
}

// AddressOf returns the address of the signer behind handle.
func (c *Client) AddressOf(ctx context.Context, handle string) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/address", map[string]string{"signer": handle}, http.StatusOK, &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

// GetNativeBalance returns the signer's balance in lamports.
func (c *Client) GetNativeBalance(ctx context.Context, handle string) (uint64, error) {
	var resp struct {
		Lamports uint64 `json:"lamports"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/balance", map[string]string{"signer": handle}, http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp.Lamports, nil
}

// GetTokenBalance returns the signer's game token balance (0 without a token account).
func (c *Client) GetTokenBalance(ctx context.Context, handle string) (float64, error) {
	var resp struct {
		Balance float64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/token-balance", map[string]string{"signer": handle}, http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// BuyToken buys amount game tokens for the signer.
func (c *Client) BuyToken(ctx context.Context, handle string, amount float64) (*Receipt, error) {
	var receipt Receipt
	err := c.do(ctx, http.MethodPost, "/api/v1/buy", map[string]interface{}{
		"signer": handle,
		"amount": amount,
	}, http.StatusOK, &receipt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("tokens bought", "amount", amount, "signature", receipt.Signature)
	return &receipt, nil
}

// SaveScore stores score, signed and paid for by the signer.
func (c *Client) SaveScore(ctx context.Context, handle string, score uint64) (*Receipt, error) {
	var receipt Receipt
	err := c.do(ctx, http.MethodPost, "/api/v1/score", map[string]interface{}{
		"signer": handle,
		"score":  score,
	}, http.StatusOK, &receipt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("score saved", "score", score, "signature", receipt.Signature)
	return &receipt, nil
}

// GetScore reads the stored score.
func (c *Client) GetScore(ctx context.Context) (uint64, error) {
	var resp struct {
		Score uint64 `json:"score"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/score", nil, http.StatusOK, &resp); err != nil {
		return 0, err
	}
	return resp.Score, nil
}

// do sends a JSON request and decodes a JSON response with wantStatus into out.
func (c *Client) do(ctx context.Context, method, path string, reqBody interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse converts an error response into an *APIError.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error     string `json:"error"`
		Kind      string `json:"kind"`
		Signature string `json:"signature"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Kind:       errResp.Kind,
		Message:    errResp.Error,
		Signature:  errResp.Signature,
	}
}

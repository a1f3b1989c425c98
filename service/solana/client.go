package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/arcadewallet/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetBlockHeight(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (uint64, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetAccountInfoWithOpts(
		ctx context.Context,
		account solana.PublicKey,
		opts *rpc.GetAccountInfoOpts,
	) (*rpc.GetAccountInfoResult, error)

	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)

	GetTokenAccountBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenAccountBalanceResult, error)
}

const (
	defaultPollInterval        = 500 * time.Millisecond
	defaultConfirmationTimeout = 60 * time.Second
)

// Client signs, submits and reads on-chain state through an RPCClient.
// It holds no mutable state after construction and may be shared across goroutines.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "devnet", rpc host)

	pollInterval        time.Duration
	confirmationTimeout time.Duration
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithPollInterval sets how often signature statuses are polled while awaiting confirmation.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithConfirmationTimeout bounds how long Submit waits for the requested confirmation level.
func WithConfirmationTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.confirmationTimeout = d
		}
	}
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:                 rpcClient,
		logger:              logger,
		metrics:             m,
		endpoint:            endpoint,
		pollInterval:        defaultPollInterval,
		confirmationTimeout: defaultConfirmationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// observe records the outcome of a single RPC call.
func (c *Client) observe(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// readError classifies a failed read: transport failures become
// NetworkUnavailableError, node-side errors are wrapped with the operation name.
func readError(op string, err error) error {
	if _, ok := asRPCError(err); ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &NetworkUnavailableError{Op: op, Err: err}
}

// GetNativeBalance returns the account's balance in lamports.
func (c *Client) GetNativeBalance(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, address, commitment)
	c.observe("GetBalance", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get balance",
			"address", address.String(),
			"error", err,
		)
		return 0, readError("get balance", err)
	}
	if out == nil {
		return 0, nil
	}

	c.logger.DebugContext(ctx, "fetched balance",
		"address", address.String(),
		"lamports", out.Value,
	)
	return out.Value, nil
}

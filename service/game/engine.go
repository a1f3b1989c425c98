// Package game is the boundary surface the game talks to: derive a signer,
// read balances and the score, buy tokens and save scores.
//
// Signers cross the boundary as opaque handles (see service/keys). The Engine
// keeps no state between calls; every operation re-reads what it needs from
// the network.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/brojonat/arcadewallet/service/config"
	"github.com/brojonat/arcadewallet/service/keys"
	"github.com/brojonat/arcadewallet/service/metrics"
	"github.com/brojonat/arcadewallet/service/nats"
	"github.com/brojonat/arcadewallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Operation names used in metrics and events.
const (
	OperationBuyToken  = "buy_token"
	OperationSaveScore = "save_score"
)

const publishTimeout = 5 * time.Second

// Receipt is the result of a mutation that reached the network.
type Receipt struct {
	Signature solanago.Signature

	// Confirmation is the level the transaction was confirmed at
	// (ConfirmationNone when Submit was asked not to wait).
	Confirmation solana.ConfirmationLevel
}

// Engine executes game operations against the chain.
// It is safe for concurrent use.
type Engine struct {
	chain     *solana.Client
	programs  solana.Programs
	level     solana.ConfirmationLevel
	publisher nats.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine creates an Engine. publisher and m may be nil.
func NewEngine(
	chain *solana.Client,
	programs solana.Programs,
	level solana.ConfirmationLevel,
	publisher nats.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		chain:     chain,
		programs:  programs,
		level:     level,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// ProgramsFromConfig collects the on-chain addresses named in cfg.
func ProgramsFromConfig(cfg *config.Config) solana.Programs {
	return solana.Programs{
		Program:             cfg.ProgramAddress,
		ScoreAccount:        cfg.ScoreAccountAddress,
		TokenProgram:        cfg.TokenProgramAddress,
		Mint:                cfg.MintAddress,
		ProgramTokenAccount: cfg.ProgramTokenAccountAddress,
		AuthoritySeed:       cfg.ProgramAuthoritySeed,
	}
}

// NewFromConfig wires an Engine from cfg over rpcClient.
func NewFromConfig(cfg *config.Config, rpcClient solana.RPCClient, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) (*Engine, error) {
	level, err := solana.ParseConfirmationLevel(cfg.ConfirmationLevel)
	if err != nil {
		return nil, err
	}

	chain := solana.NewClient(rpcClient, endpointLabel(cfg.SolanaRPCURL), m, logger,
		solana.WithPollInterval(cfg.ConfirmationPollInterval),
		solana.WithConfirmationTimeout(cfg.ConfirmationTimeout),
	)
	return NewEngine(chain, ProgramsFromConfig(cfg), level, publisher, m, logger), nil
}

// endpointLabel reduces an RPC URL to its host so API keys in paths or
// query strings never reach metric labels.
func endpointLabel(rpcURL string) string {
	switch rpcURL {
	case rpc.DevNet_RPC:
		return "devnet"
	case rpc.TestNet_RPC:
		return "testnet"
	case rpc.MainNetBeta_RPC:
		return "mainnet"
	}
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return "custom"
	}
	return u.Hostname()
}

// ConfirmationLevel returns the level mutations wait for.
func (e *Engine) ConfirmationLevel() solana.ConfirmationLevel {
	return e.level
}

// DeriveSigner derives a signer from a mnemonic and passphrase and returns its handle.
func (e *Engine) DeriveSigner(mnemonic, passphrase string) (string, error) {
	key, err := keys.DeriveSigner(mnemonic, passphrase)
	if err != nil {
		return "", err
	}
	return keys.EncodeSigner(key), nil
}

// AddressOf returns the base58 address of the signer behind handle.
func (e *Engine) AddressOf(handle string) (string, error) {
	addr, err := keys.AddressOf(handle)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// GetNativeBalance returns the signer's balance in lamports.
func (e *Engine) GetNativeBalance(ctx context.Context, handle string) (uint64, error) {
	addr, err := keys.AddressOf(handle)
	if err != nil {
		return 0, err
	}
	return e.chain.GetNativeBalance(ctx, addr, e.level.Commitment())
}

// GetTokenBalance returns the signer's game token balance scaled by the
// mint's decimals. A signer with no token account has a balance of 0.
func (e *Engine) GetTokenBalance(ctx context.Context, handle string) (float64, error) {
	addr, err := keys.AddressOf(handle)
	if err != nil {
		return 0, err
	}

	amount, err := e.chain.GetOwnerTokenBalance(ctx, addr, e.programs.Mint, e.level.Commitment())
	if errors.Is(err, solana.ErrNoTokenAccount) {
		e.logger.DebugContext(ctx, "no token account, reporting zero balance",
			"owner", addr.String(),
			"mint", e.programs.Mint.String(),
		)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount.Float64(), nil
}

// GetScore reads the score stored in the well-known score account.
func (e *Engine) GetScore(ctx context.Context) (uint64, error) {
	return e.chain.GetScore(ctx, e.programs.ScoreAccount, e.level.Commitment())
}

// BuyToken buys amount game tokens for the signer. The signer pays and must
// already hold a token account for the game mint.
func (e *Engine) BuyToken(ctx context.Context, handle string, amount float64) (*Receipt, error) {
	key, err := keys.DecodeSigner(handle)
	if err != nil {
		return nil, err
	}

	ix, err := e.chain.EncodeBuyToken(ctx, e.programs, key.PublicKey(), amount)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to encode buy-token",
			"signer", key.PublicKey().String(),
			"amount", amount,
			"error", err,
		)
		e.recordOutcome(OperationBuyToken, "not_sent")
		return nil, err
	}

	return e.execute(ctx, OperationBuyToken, key, ix, &nats.TransactionEvent{Amount: &amount})
}

// SaveScore writes score to the well-known score account, signed and paid
// for by the signer. Concurrent saves are ordered by the ledger.
func (e *Engine) SaveScore(ctx context.Context, handle string, score uint64) (*Receipt, error) {
	key, err := keys.DecodeSigner(handle)
	if err != nil {
		return nil, err
	}

	ix := solana.SaveScoreInstruction(e.programs, score)
	return e.execute(ctx, OperationSaveScore, key, ix, &nats.TransactionEvent{Score: &score})
}

// execute assembles, signs and submits a single-instruction transaction paid
// for by key, then reports the outcome.
func (e *Engine) execute(ctx context.Context, operation string, key solanago.PrivateKey, ix solanago.Instruction, event *nats.TransactionEvent) (*Receipt, error) {
	signer := key.PublicKey()

	msg, err := solana.Assemble([]solanago.Instruction{ix}, signer)
	if err != nil {
		e.recordOutcome(operation, "not_sent")
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	signed, err := e.chain.Sign(ctx, msg, []solanago.PrivateKey{key})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to sign transaction",
			"operation", operation,
			"signer", signer.String(),
			"error", err,
		)
		e.recordOutcome(operation, "not_sent")
		return nil, err
	}

	submittedAt := time.Now().UTC()
	sig, err := e.chain.Submit(ctx, signed, e.level)
	status, reason := classify(e.level, err)
	e.recordOutcome(operation, status)

	event.Operation = operation
	event.Signer = signer.String()
	event.Status = status
	event.Reason = reason
	event.ConfirmationLevel = string(e.level)
	event.SubmittedAt = submittedAt
	if !sig.IsZero() {
		event.Signature = sig.String()
	} else if status == nats.StatusUnknown {
		event.Signature = signed.Signature().String()
	}
	e.publish(ctx, event)

	if err != nil {
		e.logger.ErrorContext(ctx, "transaction did not succeed",
			"operation", operation,
			"signer", signer.String(),
			"status", status,
			"error", err,
		)
		return nil, err
	}

	e.logger.InfoContext(ctx, "transaction succeeded",
		"operation", operation,
		"signer", signer.String(),
		"signature", sig.String(),
		"confirmation_level", string(e.level),
	)
	return &Receipt{Signature: sig, Confirmation: e.level}, nil
}

// classify maps a Submit result onto an event status and reason.
func classify(level solana.ConfirmationLevel, err error) (string, string) {
	if err == nil {
		if level == solana.ConfirmationNone {
			return nats.StatusSubmitted, ""
		}
		return nats.StatusConfirmed, ""
	}

	var subErr *solana.SubmissionError
	if errors.As(err, &subErr) {
		switch {
		case subErr.Signature.IsZero():
			return nats.StatusRejected, subErr.Reason
		case subErr.TimedOut:
			return nats.StatusTimedOut, subErr.Reason
		default:
			return nats.StatusFailed, subErr.Reason
		}
	}
	return nats.StatusUnknown, err.Error()
}

// publish sends event if a publisher is configured. Failures are logged only:
// the transaction outcome has already been decided.
func (e *Engine) publish(ctx context.Context, event *nats.TransactionEvent) {
	if e.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.publisher.PublishTransaction(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish transaction event",
			"operation", event.Operation,
			"signature", event.Signature,
			"error", err,
		)
	}
}

func (e *Engine) recordOutcome(operation, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordTransactionSubmitted(operation, outcome)
}

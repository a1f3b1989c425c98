package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/brojonat/arcadewallet/service/config"
	"github.com/brojonat/arcadewallet/service/game"
	"github.com/brojonat/arcadewallet/service/keys"
	"github.com/brojonat/arcadewallet/service/nats"
	"github.com/brojonat/arcadewallet/service/solana"
)

// Status codes returned across the C boundary.
const (
	statusOK                 = 0
	statusKeyDerivation      = -1
	statusConstruction       = -2
	statusAccountResolution  = -3
	statusSubmission         = -4
	statusSubmissionTimeout  = -5
	statusNetworkUnavailable = -6
	statusAccountNotFound    = -7
	statusMalformedAccount   = -8
	statusConfiguration      = -9
	statusInternal           = -99
)

// callTimeout bounds a single exported call, including confirmation.
const callTimeout = 2 * time.Minute

var errNotConfigured = errors.New("engine configuration failed")

// library holds the process-wide engine, built from the environment on first
// use. Call results carry their own errors; the library keeps no per-call state.
type library struct {
	mu      sync.Mutex
	engine  *game.Engine
	loadErr error
	load    func() (*game.Engine, error)
}

var lib = &library{load: loadEngine}

func loadEngine() (*game.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if cfg.LogLevel == "debug" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		jsPublisher, err := nats.NewPublisher(cfg.NATSURL, nil, logger)
		if err != nil {
			return nil, err
		}
		publisher = jsPublisher
	}

	rpcClient := solana.NewRPCClient(cfg.SolanaRPCURL, cfg.RPCRateLimit)
	return game.NewFromConfig(cfg, rpcClient, publisher, nil, logger)
}

func (l *library) getEngine() (*game.Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine == nil && l.loadErr == nil {
		l.engine, l.loadErr = l.load()
	}
	if l.loadErr != nil {
		return nil, fmt.Errorf("%w: %v", errNotConfigured, l.loadErr)
	}
	return l.engine, nil
}

func (l *library) deriveSigner(mnemonic, passphrase string) (string, error) {
	key, err := keys.DeriveSigner(mnemonic, passphrase)
	if err != nil {
		return "", err
	}
	return keys.EncodeSigner(key), nil
}

func (l *library) addressOf(handle string) (string, error) {
	address, err := keys.AddressOf(handle)
	if err != nil {
		return "", err
	}
	return address.String(), nil
}

func (l *library) nativeBalance(handle string) (uint64, error) {
	engine, err := l.getEngine()
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return engine.GetNativeBalance(ctx, handle)
}

func (l *library) tokenBalance(handle string) (float64, error) {
	engine, err := l.getEngine()
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return engine.GetTokenBalance(ctx, handle)
}

func (l *library) buyToken(handle string, amount float64) error {
	engine, err := l.getEngine()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	_, err = engine.BuyToken(ctx, handle, amount)
	return err
}

func (l *library) saveScore(handle string, score uint64) error {
	engine, err := l.getEngine()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	_, err = engine.SaveScore(ctx, handle, score)
	return err
}

func (l *library) score() (uint64, error) {
	engine, err := l.getEngine()
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return engine.GetScore(ctx)
}

// outcome is the status code and message reported for a call's error.
func outcome(err error) (int, string) {
	if err == nil {
		return statusOK, ""
	}
	return statusOf(err), err.Error()
}

// statusOf maps an engine error onto its C status code.
func statusOf(err error) int {
	var (
		resolutionErr *solana.AccountResolutionError
		missingErr    *solana.MissingSignerError
		submissionErr *solana.SubmissionError
		networkErr    *solana.NetworkUnavailableError
		notFoundErr   *solana.AccountNotFoundError
		malformedErr  *solana.MalformedAccountDataError
	)

	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, errNotConfigured):
		return statusConfiguration
	case errors.Is(err, keys.ErrKeyDerivation):
		return statusKeyDerivation
	case errors.Is(err, solana.ErrInvalidAmount),
		errors.Is(err, solana.ErrEmptyInstructionList),
		errors.As(err, &missingErr):
		return statusConstruction
	case errors.As(err, &resolutionErr):
		return statusAccountResolution
	case errors.As(err, &submissionErr):
		if submissionErr.TimedOut {
			return statusSubmissionTimeout
		}
		return statusSubmission
	case errors.As(err, &networkErr):
		return statusNetworkUnavailable
	case errors.As(err, &notFoundErr):
		return statusAccountNotFound
	case errors.As(err, &malformedErr):
		return statusMalformedAccount
	default:
		return statusInternal
	}
}

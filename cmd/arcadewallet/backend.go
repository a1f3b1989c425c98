package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/brojonat/arcadewallet/client"
	"github.com/brojonat/arcadewallet/service/config"
	"github.com/brojonat/arcadewallet/service/game"
	"github.com/brojonat/arcadewallet/service/keys"
	"github.com/brojonat/arcadewallet/service/nats"
	"github.com/brojonat/arcadewallet/service/solana"
	"github.com/urfave/cli/v2"
)

type receipt struct {
	Signature    string `json:"signature"`
	Confirmation string `json:"confirmation"`
}

// backend is the game surface a command runs against: the engine in-process,
// or a sidecar over HTTP.
type backend interface {
	DeriveSigner(ctx context.Context, mnemonic, passphrase string) (string, error)
	AddressOf(ctx context.Context, handle string) (string, error)
	GetNativeBalance(ctx context.Context, handle string) (uint64, error)
	GetTokenBalance(ctx context.Context, handle string) (float64, error)
	BuyToken(ctx context.Context, handle string, amount float64) (*receipt, error)
	SaveScore(ctx context.Context, handle string, score uint64) (*receipt, error)
	GetScore(ctx context.Context) (uint64, error)
	Close() error
}

func openBackend(c *cli.Context) backend {
	logger := cliLogger(c.String("log-level"))
	if serverURL := c.String("server"); serverURL != "" {
		httpClient := &http.Client{Timeout: c.Duration("timeout")}
		return &remoteBackend{client: client.NewClient(serverURL, httpClient, logger)}
	}
	return &localBackend{logger: logger}
}

// localBackend drives a game.Engine in-process. The engine is built on first
// use so that offline commands (derive, address) need no configuration.
type localBackend struct {
	logger    *slog.Logger
	engine    *game.Engine
	publisher *nats.JetStreamPublisher
}

func (b *localBackend) load() (*game.Engine, error) {
	if b.engine != nil {
		return b.engine, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		b.publisher, err = nats.NewPublisher(cfg.NATSURL, nil, b.logger)
		if err != nil {
			return nil, err
		}
		publisher = b.publisher
	}

	rpcClient := solana.NewRPCClient(cfg.SolanaRPCURL, cfg.RPCRateLimit)
	b.engine, err = game.NewFromConfig(cfg, rpcClient, publisher, nil, b.logger)
	if err != nil {
		return nil, err
	}
	return b.engine, nil
}

func (b *localBackend) DeriveSigner(_ context.Context, mnemonic, passphrase string) (string, error) {
	key, err := keys.DeriveSigner(mnemonic, passphrase)
	if err != nil {
		return "", err
	}
	return keys.EncodeSigner(key), nil
}

func (b *localBackend) AddressOf(_ context.Context, handle string) (string, error) {
	address, err := keys.AddressOf(handle)
	if err != nil {
		return "", err
	}
	return address.String(), nil
}

func (b *localBackend) GetNativeBalance(ctx context.Context, handle string) (uint64, error) {
	engine, err := b.load()
	if err != nil {
		return 0, err
	}
	return engine.GetNativeBalance(ctx, handle)
}

func (b *localBackend) GetTokenBalance(ctx context.Context, handle string) (float64, error) {
	engine, err := b.load()
	if err != nil {
		return 0, err
	}
	return engine.GetTokenBalance(ctx, handle)
}

func (b *localBackend) BuyToken(ctx context.Context, handle string, amount float64) (*receipt, error) {
	engine, err := b.load()
	if err != nil {
		return nil, err
	}
	r, err := engine.BuyToken(ctx, handle, amount)
	if err != nil {
		return nil, err
	}
	return fromEngineReceipt(r), nil
}

func (b *localBackend) SaveScore(ctx context.Context, handle string, score uint64) (*receipt, error) {
	engine, err := b.load()
	if err != nil {
		return nil, err
	}
	r, err := engine.SaveScore(ctx, handle, score)
	if err != nil {
		return nil, err
	}
	return fromEngineReceipt(r), nil
}

func (b *localBackend) GetScore(ctx context.Context) (uint64, error) {
	engine, err := b.load()
	if err != nil {
		return 0, err
	}
	return engine.GetScore(ctx)
}

func (b *localBackend) Close() error {
	if b.publisher != nil {
		return b.publisher.Close()
	}
	return nil
}

func fromEngineReceipt(r *game.Receipt) *receipt {
	return &receipt{
		Signature:    r.Signature.String(),
		Confirmation: string(r.Confirmation),
	}
}

// remoteBackend forwards every operation to a sidecar.
type remoteBackend struct {
	client *client.Client
}

func (b *remoteBackend) DeriveSigner(ctx context.Context, mnemonic, passphrase string) (string, error) {
	return b.client.DeriveSigner(ctx, mnemonic, passphrase)
}

func (b *remoteBackend) AddressOf(ctx context.Context, handle string) (string, error) {
	return b.client.AddressOf(ctx, handle)
}

func (b *remoteBackend) GetNativeBalance(ctx context.Context, handle string) (uint64, error) {
	return b.client.GetNativeBalance(ctx, handle)
}

func (b *remoteBackend) GetTokenBalance(ctx context.Context, handle string) (float64, error) {
	return b.client.GetTokenBalance(ctx, handle)
}

func (b *remoteBackend) BuyToken(ctx context.Context, handle string, amount float64) (*receipt, error) {
	r, err := b.client.BuyToken(ctx, handle, amount)
	if err != nil {
		return nil, err
	}
	return &receipt{Signature: r.Signature, Confirmation: r.Confirmation}, nil
}

func (b *remoteBackend) SaveScore(ctx context.Context, handle string, score uint64) (*receipt, error) {
	r, err := b.client.SaveScore(ctx, handle, score)
	if err != nil {
		return nil, err
	}
	return &receipt{Signature: r.Signature, Confirmation: r.Confirmation}, nil
}

func (b *remoteBackend) GetScore(ctx context.Context) (uint64, error) {
	return b.client.GetScore(ctx)
}

func (b *remoteBackend) Close() error { return nil }

// cliLogger writes diagnostics to stderr so stdout stays parseable.
func cliLogger(levelStr string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

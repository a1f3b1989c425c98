package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// blockhashCommitment is the commitment blockhashes are fetched at. Preflight
// simulation never runs above it, or the node may not know the blockhash yet.
const blockhashCommitment = rpc.CommitmentConfirmed

// FetchBlockhash returns the network's latest blockhash and the last block
// height at which a transaction bound to it is still accepted.
func (c *Client) FetchBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, blockhashCommitment)
	c.observe("GetLatestBlockhash", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to fetch recent blockhash", "error", err)
		if _, ok := asRPCError(err); ok {
			return solana.Hash{}, 0, fmt.Errorf("fetch recent blockhash: %w", err)
		}
		return solana.Hash{}, 0, &NetworkUnavailableError{Op: "fetch recent blockhash", Err: err}
	}
	if out == nil || out.Value == nil || out.Value.Blockhash.IsZero() {
		return solana.Hash{}, 0, errors.New("fetch recent blockhash: empty response")
	}
	return out.Value.Blockhash, out.Value.LastValidBlockHeight, nil
}

// Sign binds msg to a fresh blockhash and signs it with signers. Every
// address the message requires as a signer must have a key in signers;
// extra keys are ignored. Signing never mutates msg, so an expired
// transaction can be re-signed from the same Message.
func (c *Client) Sign(ctx context.Context, msg *Message, signers []solana.PrivateKey) (*SignedTransaction, error) {
	if msg == nil {
		return nil, errors.New("message is required")
	}

	keys := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, key := range signers {
		keys[key.PublicKey()] = key
	}
	for _, required := range msg.Signers() {
		if _, ok := keys[required]; !ok {
			return nil, &MissingSignerError{Address: required}
		}
	}

	blockhash, lastValid, err := c.FetchBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx := msg.withBlockhash(blockhash)
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		key, ok := keys[pub]
		if !ok {
			return nil
		}
		return &key
	}); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	c.logger.DebugContext(ctx, "signed transaction",
		"signature", tx.Signatures[0].String(),
		"fee_payer", msg.FeePayer().String(),
		"blockhash", blockhash.String(),
		"last_valid_block_height", lastValid,
	)

	return &SignedTransaction{
		Transaction:          tx,
		Blockhash:            blockhash,
		LastValidBlockHeight: lastValid,
	}, nil
}

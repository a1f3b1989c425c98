package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// scoreDataSize is the prefix of the score account holding the u64 score.
const scoreDataSize = 8

// GetAccount fetches the raw state of address at the given commitment.
func (c *Client) GetAccount(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) (*AccountSnapshot, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		c.observe("GetAccountInfo", start, nil)
		return nil, &AccountNotFoundError{Address: address}
	}
	c.observe("GetAccountInfo", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get account info",
			"address", address.String(),
			"error", err,
		)
		return nil, readError("get account info", err)
	}
	if out == nil || out.Value == nil {
		return nil, &AccountNotFoundError{Address: address}
	}

	var data []byte
	if out.Value.Data != nil {
		data = out.Value.Data.GetBinary()
	}

	return &AccountSnapshot{
		Address:    address,
		Owner:      out.Value.Owner,
		Lamports:   out.Value.Lamports,
		Executable: out.Value.Executable,
		Data:       data,
	}, nil
}

// DecodeScore reads the score from the first 8 bytes (u64 little-endian) of
// the score account. Trailing bytes are ignored.
func DecodeScore(snapshot *AccountSnapshot) (uint64, error) {
	if snapshot == nil {
		return 0, &MalformedAccountDataError{Want: scoreDataSize}
	}
	if len(snapshot.Data) < scoreDataSize {
		return 0, &MalformedAccountDataError{
			Address: snapshot.Address,
			Want:    scoreDataSize,
			Got:     len(snapshot.Data),
		}
	}
	return binary.LittleEndian.Uint64(snapshot.Data[:scoreDataSize]), nil
}

// GetScore fetches and decodes the score account.
func (c *Client) GetScore(ctx context.Context, scoreAccount solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	snapshot, err := c.GetAccount(ctx, scoreAccount, commitment)
	if err != nil {
		c.recordDecode("score", err)
		return 0, err
	}
	score, err := DecodeScore(snapshot)
	c.recordDecode("score", err)
	if err != nil {
		c.logger.WarnContext(ctx, "malformed score account",
			"address", scoreAccount.String(),
			"data_len", len(snapshot.Data),
		)
		return 0, err
	}
	return score, nil
}

// FindTokenAccount returns the owner's token account for mint. When the owner
// holds several, the associated token account is preferred, then the first
// one the node returned.
func (c *Client) FindTokenAccount(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	start := time.Now()
	out, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		},
	)
	c.observe("GetTokenAccountsByOwner", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get token accounts",
			"owner", owner.String(),
			"mint", mint.String(),
			"error", err,
		)
		return solana.PublicKey{}, readError("get token accounts by owner", err)
	}

	var found []solana.PublicKey
	if out != nil {
		for _, acct := range out.Value {
			if acct != nil {
				found = append(found, acct.Pubkey)
			}
		}
	}

	switch len(found) {
	case 0:
		return solana.PublicKey{}, fmt.Errorf("%w: owner %s, mint %s", ErrNoTokenAccount, owner, mint)
	case 1:
		return found[0], nil
	}

	chosen := found[0]
	if ata, _, err := solana.FindAssociatedTokenAddress(owner, mint); err == nil {
		for _, pk := range found {
			if pk.Equals(ata) {
				chosen = ata
				break
			}
		}
	}
	c.logger.WarnContext(ctx, "owner holds several token accounts for mint",
		"owner", owner.String(),
		"mint", mint.String(),
		"count", len(found),
		"chosen", chosen.String(),
	)
	return chosen, nil
}

// GetTokenBalance returns the balance held by a token account.
func (c *Client) GetTokenBalance(ctx context.Context, tokenAccount solana.PublicKey, commitment rpc.CommitmentType) (TokenAmount, error) {
	start := time.Now()
	out, err := c.rpc.GetTokenAccountBalance(ctx, tokenAccount, commitment)
	c.observe("GetTokenAccountBalance", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get token account balance",
			"account", tokenAccount.String(),
			"error", err,
		)
		c.recordDecode("token_balance", err)
		return TokenAmount{}, readError("get token account balance", err)
	}
	if out == nil || out.Value == nil {
		err := &AccountNotFoundError{Address: tokenAccount}
		c.recordDecode("token_balance", err)
		return TokenAmount{}, err
	}

	raw, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		err = fmt.Errorf("token account %s: invalid amount %q: %w", tokenAccount, out.Value.Amount, err)
		c.recordDecode("token_balance", err)
		return TokenAmount{}, err
	}
	c.recordDecode("token_balance", nil)
	return TokenAmount{Raw: raw, Decimals: out.Value.Decimals}, nil
}

// GetOwnerTokenBalance resolves the owner's token account for mint and returns
// its balance. An owner with no token account yields ErrNoTokenAccount.
func (c *Client) GetOwnerTokenBalance(ctx context.Context, owner, mint solana.PublicKey, commitment rpc.CommitmentType) (TokenAmount, error) {
	tokenAccount, err := c.FindTokenAccount(ctx, owner, mint)
	if err != nil {
		return TokenAmount{}, err
	}
	return c.GetTokenBalance(ctx, tokenAccount, commitment)
}

func (c *Client) recordDecode(kind string, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordAccountDecode(kind, err)
}

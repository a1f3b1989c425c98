package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Submit sends a signed transaction once and, unless level is
// ConfirmationNone, waits until the network reports it at level or better.
//
// The node simulates the transaction first at the level's commitment, capped
// at the commitment the blockhash was fetched at; a failed simulation comes back as a SubmissionError with a zero Signature.
// Once sent, Submit never resends: a transaction that fails on chain, outlives
// its blockhash, or is not confirmed within the confirmation timeout yields a
// SubmissionError carrying its signature.
func (c *Client) Submit(ctx context.Context, signed *SignedTransaction, level ConfirmationLevel) (solana.Signature, error) {
	if signed == nil || signed.Transaction == nil {
		return solana.Signature{}, errors.New("signed transaction is required")
	}

	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, signed.Transaction, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: preflightCommitment(level),
	})
	c.observe("SendTransaction", start, err)
	if err != nil {
		if rpcErr, ok := asRPCError(err); ok {
			reason := rejectionReason(rpcErr)
			c.logger.WarnContext(ctx, "transaction rejected",
				"signature", signed.Signature().String(),
				"code", rpcErr.Code,
				"reason", reason,
			)
			return solana.Signature{}, &SubmissionError{Reason: reason, Code: rpcErr.Code}
		}
		// The node may still have received it; the local signature is the id to look for.
		c.logger.ErrorContext(ctx, "failed to send transaction",
			"signature", signed.Signature().String(),
			"error", err,
		)
		return solana.Signature{}, &NetworkUnavailableError{Op: "send transaction", Err: err}
	}

	c.logger.InfoContext(ctx, "transaction sent",
		"signature", sig.String(),
		"confirmation_level", string(level),
	)

	if level == ConfirmationNone {
		return sig, nil
	}

	if err := c.awaitConfirmation(ctx, sig, level, signed.LastValidBlockHeight); err != nil {
		return sig, err
	}
	return sig, nil
}

// awaitConfirmation polls the signature status until it reaches level, fails,
// expires, or the confirmation timeout elapses.
func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature, level ConfirmationLevel, lastValidBlockHeight uint64) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.confirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	finish := func(outcome string) {
		if c.metrics != nil {
			c.metrics.RecordConfirmation(string(level), outcome, time.Since(start).Seconds())
		}
	}

	for {
		if c.metrics != nil {
			c.metrics.RecordConfirmationPoll(string(level))
		}

		status, err := c.signatureStatus(ctx, sig)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				c.logger.WarnContext(ctx, "failed to poll signature status",
					"signature", sig.String(),
					"error", err,
				)
			}
		case status != nil:
			if status.Err != nil {
				reason := describeTransactionError(status.Err)
				c.logger.WarnContext(ctx, "transaction failed",
					"signature", sig.String(),
					"slot", status.Slot,
					"reason", reason,
				)
				finish("failed")
				return &SubmissionError{Signature: sig, Reason: reason}
			}
			reached := statusLevel(status)
			if reached.rank() >= level.rank() {
				c.logger.InfoContext(ctx, "transaction confirmed",
					"signature", sig.String(),
					"slot", status.Slot,
					"level", string(reached),
					"elapsed", time.Since(start).String(),
				)
				finish("confirmed")
				return nil
			}
		default:
			if expired, height := c.blockhashExpired(ctx, lastValidBlockHeight); expired {
				c.logger.WarnContext(ctx, "transaction expired",
					"signature", sig.String(),
					"block_height", height,
					"last_valid_block_height", lastValidBlockHeight,
				)
				finish("expired")
				return &SubmissionError{
					Signature: sig,
					Reason:    fmt.Sprintf("blockhash expired at block height %d before the transaction landed", height),
				}
			}
		}

		select {
		case <-ctx.Done():
			c.logger.WarnContext(ctx, "confirmation timed out",
				"signature", sig.String(),
				"level", string(level),
				"elapsed", time.Since(start).String(),
			)
			finish("timeout")
			return &SubmissionError{
				Signature: sig,
				Reason:    fmt.Sprintf("not %s after %s: %v", level, time.Since(start).Round(time.Millisecond), ctx.Err()),
				TimedOut:  true,
			}
		case <-ticker.C:
		}
	}
}

// signatureStatus returns the status of sig, or nil if the network has not seen it yet.
func (c *Client) signatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.observe("GetSignatureStatuses", start, err)
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// blockhashExpired reports whether the chain has moved past lastValidBlockHeight.
// A zero lastValidBlockHeight or a failed height query never counts as expired.
func (c *Client) blockhashExpired(ctx context.Context, lastValidBlockHeight uint64) (bool, uint64) {
	if lastValidBlockHeight == 0 {
		return false, 0
	}
	start := time.Now()
	height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	c.observe("GetBlockHeight", start, err)
	if err != nil {
		return false, 0
	}
	return height > lastValidBlockHeight, height
}

// statusLevel maps a signature status onto a ConfirmationLevel. Older nodes
// omit confirmationStatus; a nil confirmation count then means the slot is rooted.
func statusLevel(status *rpc.SignatureStatusesResult) ConfirmationLevel {
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return ConfirmationFinalized
	case rpc.ConfirmationStatusConfirmed:
		return ConfirmationConfirmed
	case rpc.ConfirmationStatusProcessed:
		return ConfirmationProcessed
	}
	if status.Confirmations == nil {
		return ConfirmationFinalized
	}
	return ConfirmationProcessed
}

// preflightCommitment is the level's commitment, lowered to blockhashCommitment
// when higher. A blockhash fetched at confirmed is usually not finalized yet.
func preflightCommitment(level ConfirmationLevel) rpc.CommitmentType {
	if level == ConfirmationFinalized {
		return blockhashCommitment
	}
	return level.Commitment()
}

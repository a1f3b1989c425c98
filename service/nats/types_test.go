package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionEvent_Subject(t *testing.T) {
	event := &TransactionEvent{Signer: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"}
	assert.Equal(t, "arcade.txns.4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", event.Subject())
}

func TestTransactionEvent_JSON(t *testing.T) {
	score := uint64(42)
	event := &TransactionEvent{
		Operation:         "save_score",
		Signer:            "signer",
		Score:             &score,
		Status:            StatusRejected,
		Reason:            "insufficient funds",
		ConfirmationLevel: "confirmed",
		SubmittedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "signature", "rejected transactions carry no signature")
	assert.NotContains(t, fields, "amount")
	assert.Equal(t, float64(42), fields["score"])
	assert.Equal(t, "rejected", fields["status"])
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.PublishTransaction(ctx, &TransactionEvent{Signer: "a"}))
	require.NoError(t, m.PublishTransaction(ctx, &TransactionEvent{Signer: "b"}))
	assert.Len(t, m.GetPublishedEvents(), 2)
	assert.Len(t, m.GetPublishedEventsForSigner("a"), 1)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishTransaction(ctx, &TransactionEvent{Signer: "a"}))
	assert.Len(t, m.GetPublishedEvents(), 2)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}

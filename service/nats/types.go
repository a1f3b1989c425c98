package nats

import (
	"time"
)

// Transaction outcome statuses carried by TransactionEvent.Status.
const (
	StatusSubmitted = "submitted" // sent with confirmation level "none"
	StatusConfirmed = "confirmed" // reached the requested confirmation level
	StatusRejected  = "rejected"  // refused by the node before landing
	StatusFailed    = "failed"    // landed and failed, or its blockhash expired
	StatusTimedOut  = "timed_out" // sent, but not confirmed before the deadline
	StatusUnknown   = "unknown"   // transport failed mid-send; it may still land
)

// TransactionEvent describes the outcome of one game transaction.
// It is published to the subject "arcade.txns.{signer}" in JetStream.
type TransactionEvent struct {
	// Signature is empty when the node rejected the transaction outright.
	Signature string `json:"signature,omitempty"`

	// Operation is "buy_token" or "save_score".
	Operation string `json:"operation"`
	Signer    string `json:"signer"`

	// Arguments of the operation; only the one matching Operation is set.
	Score  *uint64  `json:"score,omitempty"`
	Amount *float64 `json:"amount,omitempty"`

	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	ConfirmationLevel string `json:"confirmation_level"`

	SubmittedAt time.Time `json:"submitted_at"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject the event is published to.
func (e *TransactionEvent) Subject() string {
	return SubjectPrefix + "." + e.Signer
}

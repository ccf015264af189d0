package events

import (
	"context"

	"github.com/google/uuid"
)

// Topics published by the service. Routing keys on the commitment events
// exchange use these values directly.
const (
	TopicCommitmentCreated      = "commitment.created"
	TopicCommitmentValueUpdated = "commitment.value_updated"
	TopicCommitmentSettled      = "commitment.settled"
	TopicCommitmentEarlyExit    = "commitment.early_exit"
	TopicTokenMinted            = "token.minted"
	TopicTokenTransferred       = "token.transferred"
	TopicTokenSettled           = "token.settled"
	TopicAttestationRecorded    = "attestation.recorded"
	TopicFeesRecorded           = "fees.recorded"
)

// Event is the envelope published to the sink. Payload must be
// JSON-serializable.
type Event struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// Sink is a fire-and-forget publisher. A failed publish must never roll
// back an already committed state change; callers log and count failures
// instead of propagating them.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

func newEvent(topic string, ts int64, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: ts,
		Payload:   payload,
	}
}

type CommitmentCreatedPayload struct {
	CommitmentID string `json:"commitment_id"`
	Owner        string `json:"owner"`
	TokenID      uint64 `json:"token_id"`
	Amount       int64  `json:"amount"`
	Asset        string `json:"asset"`
	ExpiresAt    int64  `json:"expires_at"`
}

func NewCommitmentCreatedEvent(ts int64, p CommitmentCreatedPayload) Event {
	return newEvent(TopicCommitmentCreated, ts, p)
}

type CommitmentValueUpdatedPayload struct {
	CommitmentID string `json:"commitment_id"`
	CurrentValue int64  `json:"current_value"`
}

func NewCommitmentValueUpdatedEvent(ts int64, p CommitmentValueUpdatedPayload) Event {
	return newEvent(TopicCommitmentValueUpdated, ts, p)
}

type CommitmentSettledPayload struct {
	CommitmentID string `json:"commitment_id"`
	TokenID      uint64 `json:"token_id"`
}

func NewCommitmentSettledEvent(ts int64, p CommitmentSettledPayload) Event {
	return newEvent(TopicCommitmentSettled, ts, p)
}

type CommitmentEarlyExitPayload struct {
	CommitmentID string `json:"commitment_id"`
	Owner        string `json:"owner"`
	Penalty      int64  `json:"penalty"`
}

func NewCommitmentEarlyExitEvent(ts int64, p CommitmentEarlyExitPayload) Event {
	return newEvent(TopicCommitmentEarlyExit, ts, p)
}

type TokenMintedPayload struct {
	TokenID      uint64 `json:"token_id"`
	Owner        string `json:"owner"`
	CommitmentID string `json:"commitment_id"`
}

func NewTokenMintedEvent(ts int64, p TokenMintedPayload) Event {
	return newEvent(TopicTokenMinted, ts, p)
}

type TokenTransferredPayload struct {
	TokenID uint64 `json:"token_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func NewTokenTransferredEvent(ts int64, p TokenTransferredPayload) Event {
	return newEvent(TopicTokenTransferred, ts, p)
}

type TokenSettledPayload struct {
	TokenID uint64 `json:"token_id"`
}

func NewTokenSettledEvent(ts int64, p TokenSettledPayload) Event {
	return newEvent(TopicTokenSettled, ts, p)
}

type AttestationRecordedPayload struct {
	CommitmentID string `json:"commitment_id"`
	Type         string `json:"type"`
	Positive     bool   `json:"positive"`
	Verifier     string `json:"verifier"`
}

func NewAttestationRecordedEvent(ts int64, p AttestationRecordedPayload) Event {
	return newEvent(TopicAttestationRecorded, ts, p)
}

type FeesRecordedPayload struct {
	CommitmentID string `json:"commitment_id"`
	Amount       int64  `json:"amount"`
}

func NewFeesRecordedEvent(ts int64, p FeesRecordedPayload) Event {
	return newEvent(TopicFeesRecorded, ts, p)
}

// Noop discards every event; used in tests and when no queue is configured.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Publish(ctx context.Context, event Event) error {
	return nil
}

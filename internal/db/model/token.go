package model

import (
	"github.com/commitlabs/commitment-service/internal/types"
)

const (
	TokenCollection   = "tokens"
	OwnerCollection   = "owners"
	CounterCollection = "counters"
)

// TokenCounterID is the counters document holding the last assigned
// token id. Ids are assigned sequentially starting at 1.
const TokenCounterID = "token_id"

// TokenMetadata is the commitment-terms snapshot frozen into a token at
// mint time.
type TokenMetadata struct {
	CommitmentID            string               `bson:"commitment_id" json:"commitment_id"`
	DurationDays            uint32               `bson:"duration_days" json:"duration_days"`
	MaxLossPercent          uint32               `bson:"max_loss_percent" json:"max_loss_percent"`
	CommitmentType          types.CommitmentType `bson:"commitment_type" json:"commitment_type"`
	EarlyExitPenaltyPercent uint32               `bson:"early_exit_penalty_percent" json:"early_exit_penalty_percent"`
	CreatedAt               int64                `bson:"created_at" json:"created_at"`
	ExpiresAt               int64                `bson:"expires_at" json:"expires_at"`
	InitialAmount           int64                `bson:"initial_amount" json:"initial_amount"`
	Asset                   string               `bson:"asset" json:"asset"`
}

// TokenDocument is one ownership record. Each token id has exactly one
// current owner at all times.
type TokenDocument struct {
	TokenID  uint64        `bson:"_id" json:"token_id"`
	Owner    string        `bson:"owner" json:"owner"`
	Metadata TokenMetadata `bson:"metadata" json:"metadata"`
	IsActive bool          `bson:"is_active" json:"is_active"`
}

// OwnerDocument carries the per-owner balance counter and token list.
// Registry-wide, the sum of all balances equals the number of minted
// tokens.
type OwnerDocument struct {
	Owner   string   `bson:"_id" json:"owner"`
	Balance uint64   `bson:"balance" json:"balance"`
	Tokens  []uint64 `bson:"tokens" json:"tokens"`
}

// CounterDocument is an instance-scoped monotonic counter.
type CounterDocument struct {
	ID    string `bson:"_id"`
	Value uint64 `bson:"value"`
}

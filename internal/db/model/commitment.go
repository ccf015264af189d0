package model

import (
	"github.com/commitlabs/commitment-service/internal/types"
)

const CommitmentCollection = "commitments"

// CommitmentRules is the rule set frozen into a commitment at creation.
type CommitmentRules struct {
	DurationDays            uint32               `bson:"duration_days" json:"duration_days"`
	MaxLossPercent          uint32               `bson:"max_loss_percent" json:"max_loss_percent"`
	CommitmentType          types.CommitmentType `bson:"commitment_type" json:"commitment_type"`
	EarlyExitPenaltyPercent uint32               `bson:"early_exit_penalty_percent" json:"early_exit_penalty_percent"`
	MinFeeThreshold         int64                `bson:"min_fee_threshold" json:"min_fee_threshold"`
	GracePeriodDays         uint32               `bson:"grace_period_days" json:"grace_period_days"`
}

// CommitmentDocument is the canonical commitment record owned by the
// ledger. Timestamps are unix seconds; expires_at is always
// created_at + duration_days * 86400.
type CommitmentDocument struct {
	ID           string                 `bson:"_id" json:"id"`
	Owner        string                 `bson:"owner" json:"owner"`
	TokenID      uint64                 `bson:"token_id" json:"token_id"`
	Rules        CommitmentRules        `bson:"rules" json:"rules"`
	Amount       int64                  `bson:"amount" json:"amount"`
	Asset        string                 `bson:"asset" json:"asset"`
	CreatedAt    int64                  `bson:"created_at" json:"created_at"`
	ExpiresAt    int64                  `bson:"expires_at" json:"expires_at"`
	CurrentValue int64                  `bson:"current_value" json:"current_value"`
	Status       types.CommitmentStatus `bson:"status" json:"status"`
}

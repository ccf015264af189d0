package testutil

import (
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/types"
)

// RandomAddress returns a synthetic principal address.
func RandomAddress() string {
	return "acct_" + gofakeit.LetterN(20)
}

// RandomCommitmentRules returns a valid rule set: non-zero duration,
// max loss within [1, 100] and a known commitment type.
func RandomCommitmentRules() model.CommitmentRules {
	commitmentTypes := []types.CommitmentType{
		types.CommitmentTypeSafe,
		types.CommitmentTypeBalanced,
		types.CommitmentTypeAggressive,
	}
	return model.CommitmentRules{
		DurationDays:            uint32(gofakeit.Number(1, 365)),
		MaxLossPercent:          uint32(gofakeit.Number(1, 100)),
		CommitmentType:          commitmentTypes[gofakeit.Number(0, len(commitmentTypes)-1)],
		EarlyExitPenaltyPercent: uint32(gofakeit.Number(0, 50)),
		MinFeeThreshold:         int64(gofakeit.Number(0, 1000)),
		GracePeriodDays:         uint32(gofakeit.Number(0, 14)),
	}
}

// RandomCommitmentDocument returns an active commitment with
// current_value equal to amount, as it is at creation time.
func RandomCommitmentDocument() *model.CommitmentDocument {
	rules := RandomCommitmentRules()
	amount := int64(gofakeit.Number(1, 1_000_000))
	createdAt := int64(gofakeit.Number(1_600_000_000, 1_700_000_000))
	return &model.CommitmentDocument{
		ID:           uuid.NewString(),
		Owner:        RandomAddress(),
		TokenID:      uint64(gofakeit.Number(1, 1_000_000)),
		Rules:        rules,
		Amount:       amount,
		Asset:        gofakeit.LetterN(4),
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt + int64(rules.DurationDays)*86400,
		CurrentValue: amount,
		Status:       types.StatusActive,
	}
}

// RandomTokenDocument returns an active token owned by a random
// address. The token id must be assigned by the caller when the test
// exercises counter semantics.
func RandomTokenDocument(tokenID uint64) *model.TokenDocument {
	rules := RandomCommitmentRules()
	createdAt := int64(gofakeit.Number(1_600_000_000, 1_700_000_000))
	return &model.TokenDocument{
		TokenID: tokenID,
		Owner:   RandomAddress(),
		Metadata: model.TokenMetadata{
			CommitmentID:            uuid.NewString(),
			DurationDays:            rules.DurationDays,
			MaxLossPercent:          rules.MaxLossPercent,
			CommitmentType:          rules.CommitmentType,
			EarlyExitPenaltyPercent: rules.EarlyExitPenaltyPercent,
			CreatedAt:               createdAt,
			ExpiresAt:               createdAt + int64(rules.DurationDays)*86400,
			InitialAmount:           int64(gofakeit.Number(1, 1_000_000)),
			Asset:                   gofakeit.LetterN(4),
		},
		IsActive: true,
	}
}

// RandomAttestationDocument returns an attestation for the given
// commitment.
func RandomAttestationDocument(commitmentID string) *model.AttestationDocument {
	attestationTypes := []types.AttestationType{
		types.AttestationHealthCheck,
		types.AttestationViolation,
		types.AttestationFeeGeneration,
		types.AttestationOther,
	}
	severities := []string{types.SeverityLow, types.SeverityMedium, types.SeverityHigh}
	attType := attestationTypes[gofakeit.Number(0, len(attestationTypes)-1)]
	payload := map[string]string{}
	if attType == types.AttestationViolation {
		payload["severity"] = severities[gofakeit.Number(0, len(severities)-1)]
	}
	return &model.AttestationDocument{
		CommitmentID: commitmentID,
		Type:         attType,
		Payload:      payload,
		Positive:     attType != types.AttestationViolation,
		Verifier:     RandomAddress(),
		Timestamp:    int64(gofakeit.Number(1_600_000_000, 1_700_000_000)),
	}
}

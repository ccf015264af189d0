package model

const HealthMetricsCollection = "health_metrics"

// DefaultComplianceScore is the stored running score of a commitment
// before any attestation has been recorded.
const DefaultComplianceScore = 100

// HealthMetricsDocument holds the compliance engine's independently
// persisted per-commitment state. Everything else in the health view
// (initial/current value, computed drawdown) is recomputed from the
// ledger snapshot at read time.
type HealthMetricsDocument struct {
	CommitmentID        string `bson:"_id" json:"commitment_id"`
	FeesGenerated       int64  `bson:"fees_generated" json:"fees_generated"`
	ComplianceScore     int64  `bson:"compliance_score" json:"compliance_score"`
	DrawdownOverride    int64  `bson:"drawdown_override" json:"drawdown_override"`
	HasDrawdownOverride bool   `bson:"has_drawdown_override" json:"has_drawdown_override"`
	OpenViolation       bool   `bson:"open_violation" json:"open_violation"`
	LastAttestation     int64  `bson:"last_attestation" json:"last_attestation"`
}

// NewHealthMetricsDocument returns the default engine state for a
// commitment with no recorded attestations or fees.
func NewHealthMetricsDocument(commitmentID string) *HealthMetricsDocument {
	return &HealthMetricsDocument{
		CommitmentID:    commitmentID,
		ComplianceScore: DefaultComplianceScore,
	}
}

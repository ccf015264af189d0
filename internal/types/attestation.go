package types

// Enum values for Attestation Type
type AttestationType string

const (
	AttestationHealthCheck   AttestationType = "health_check"
	AttestationViolation     AttestationType = "violation"
	AttestationFeeGeneration AttestationType = "fee_generation"
	AttestationDrawdown      AttestationType = "drawdown"
	AttestationOther         AttestationType = "other"
)

func (t AttestationType) String() string {
	return string(t)
}

// Severity levels carried in a violation attestation payload under the
// "severity" key. Unknown or absent severity falls back to medium.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SeverityPenalty returns the score penalty for a violation severity.
func SeverityPenalty(severity string) int64 {
	switch severity {
	case SeverityLow:
		return 10
	case SeverityHigh:
		return 30
	default:
		return 20
	}
}

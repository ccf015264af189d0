package types

// Enum values for Commitment Status
type CommitmentStatus string

const (
	StatusActive    CommitmentStatus = "ACTIVE"
	StatusSettled   CommitmentStatus = "SETTLED"
	StatusEarlyExit CommitmentStatus = "EARLY_EXIT"
)

func (s CommitmentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no transition out of s is permitted.
func (s CommitmentStatus) IsTerminal() bool {
	return s == StatusSettled || s == StatusEarlyExit
}

// QualifiedStatesForSettle returns the qualified current states for settlement
func QualifiedStatesForSettle() []CommitmentStatus {
	return []CommitmentStatus{StatusActive}
}

// QualifiedStatesForEarlyExit returns the qualified current states for early exit
func QualifiedStatesForEarlyExit() []CommitmentStatus {
	return []CommitmentStatus{StatusActive}
}

// Enum values for Commitment Type
type CommitmentType string

const (
	CommitmentTypeSafe       CommitmentType = "safe"
	CommitmentTypeBalanced   CommitmentType = "balanced"
	CommitmentTypeAggressive CommitmentType = "aggressive"
)

func (t CommitmentType) String() string {
	return string(t)
}

func (t CommitmentType) Valid() bool {
	switch t {
	case CommitmentTypeSafe, CommitmentTypeBalanced, CommitmentTypeAggressive:
		return true
	default:
		return false
	}
}

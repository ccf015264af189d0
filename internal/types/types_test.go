package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitmentStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusSettled.IsTerminal())
	assert.True(t, StatusEarlyExit.IsTerminal())
}

func TestCommitmentTypeValid(t *testing.T) {
	assert.True(t, CommitmentTypeSafe.Valid())
	assert.True(t, CommitmentTypeBalanced.Valid())
	assert.True(t, CommitmentTypeAggressive.Valid())
	assert.False(t, CommitmentType("reckless").Valid())
	assert.False(t, CommitmentType("").Valid())
}

func TestSeverityPenalty(t *testing.T) {
	assert.Equal(t, int64(10), SeverityPenalty(SeverityLow))
	assert.Equal(t, int64(20), SeverityPenalty(SeverityMedium))
	assert.Equal(t, int64(30), SeverityPenalty(SeverityHigh))
	// unknown and absent severities fall back to medium
	assert.Equal(t, int64(20), SeverityPenalty("catastrophic"))
	assert.Equal(t, int64(20), SeverityPenalty(""))
}

func TestErrorMatching(t *testing.T) {
	t.Run("sentinel matches itself", func(t *testing.T) {
		assert.ErrorIs(t, ErrNotOwner, ErrNotOwner)
	})
	t.Run("wrapped sentinel still matches", func(t *testing.T) {
		err := fmt.Errorf("transfer 3: %w", ErrNotOwner)
		assert.ErrorIs(t, err, ErrNotOwner)
	})
	t.Run("different codes do not match", func(t *testing.T) {
		assert.False(t, errors.Is(ErrNotOwner, ErrTokenNotFound))
	})
}

func TestErrorCategories(t *testing.T) {
	assert.True(t, IsValidationError(ErrInvalidAmount))
	assert.True(t, IsValidationError(ErrBatchTooLarge))
	assert.True(t, IsStateError(ErrAlreadySettled))
	assert.True(t, IsStateError(fmt.Errorf("wrapped: %w", ErrNotExpired)))
	assert.True(t, IsConcurrencyError(ErrReentrancyDetected))
	assert.True(t, IsAuthorizationError(ErrUnauthorized))

	assert.False(t, IsValidationError(ErrAlreadySettled))
	assert.False(t, IsStateError(errors.New("plain")))
	assert.False(t, IsStateError(nil))
}

package batch

import (
	"errors"
	"testing"

	"github.com/commitlabs/commitment-service/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter(t *testing.T) {
	l := NewLimiter(5)

	t.Run("within limit", func(t *testing.T) {
		assert.NoError(t, l.Enforce(5, "batch_transfer"))
		assert.NoError(t, l.Enforce(0, "batch_transfer"))
	})
	t.Run("over limit", func(t *testing.T) {
		err := l.Enforce(6, "batch_transfer")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrBatchTooLarge))
		assert.True(t, types.IsValidationError(err))
	})
	t.Run("default ceiling", func(t *testing.T) {
		l := NewLimiter(0)
		assert.Equal(t, DefaultMaxBatchSize, l.MaxBatchSize())
	})
}

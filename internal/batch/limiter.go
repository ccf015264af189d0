package batch

import (
	"fmt"

	"github.com/commitlabs/commitment-service/internal/types"
)

// DefaultMaxBatchSize bounds the cost of a single batch call when no
// explicit ceiling is configured.
const DefaultMaxBatchSize = 100

// Limiter enforces the batch size ceiling shared by all bulk operations.
type Limiter struct {
	maxBatchSize int
}

func NewLimiter(maxBatchSize int) *Limiter {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Limiter{maxBatchSize: maxBatchSize}
}

// Enforce rejects batches above the configured ceiling before any
// mutation takes place. The context string names the caller for the
// error message only.
func (l *Limiter) Enforce(size int, context string) error {
	if size > l.maxBatchSize {
		return fmt.Errorf("%w: %s batch of %d exceeds limit %d", types.ErrBatchTooLarge, context, size, l.maxBatchSize)
	}
	return nil
}

// MaxBatchSize returns the configured ceiling.
func (l *Limiter) MaxBatchSize() int {
	return l.maxBatchSize
}

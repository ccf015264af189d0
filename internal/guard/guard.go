package guard

import (
	"sync/atomic"

	"github.com/commitlabs/commitment-service/internal/types"
)

// Guard is a per-component reentrancy guard. A guarded operation acquires
// it on entry and must release it on every exit path; a second acquire
// while held fails immediately instead of blocking, because the only way
// a held guard can be observed within a single serialized call is a
// synchronous re-entry (e.g. through an authorization callback).
type Guard struct {
	held atomic.Bool
}

func New() *Guard {
	return &Guard{}
}

// Acquire takes the guard, failing with ErrReentrancyDetected if it is
// already held.
func (g *Guard) Acquire() error {
	if !g.held.CompareAndSwap(false, true) {
		return types.ErrReentrancyDetected
	}
	return nil
}

// Release clears the guard unconditionally. Callers defer it immediately
// after a successful Acquire so no exit path leaks a held guard.
func (g *Guard) Release() {
	g.held.Store(false)
}

// Held reports whether the guard is currently taken.
func (g *Guard) Held() bool {
	return g.held.Load()
}

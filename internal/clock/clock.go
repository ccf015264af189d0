package clock

import (
	"sync"
	"time"
)

// Clock supplies the ledger's notion of current time. Expiry checks,
// created_at/expires_at stamps and attestation timestamps all go through
// it so tests can move time forward deterministically.
type Clock interface {
	Now() time.Time
}

// System is the wall-clock implementation used in production.
type System struct{}

func NewSystem() *System {
	return &System{}
}

func (s *System) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a settable clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

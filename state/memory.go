package state

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
)

type MemoryManager struct {
	// Backend name -> last observed availability
	availability   map[string]Availability
	availabilityMu sync.RWMutex

	// Clock interface for time-related operations. Must use this to avoid
	// flakiness in tests.
	clock clock.Clock
}

func NewMemoryManager() *MemoryManager {
	return newMemoryManagerWithClock(clock.New())
}

func newMemoryManagerWithClock(clk clock.Clock) *MemoryManager {
	return &MemoryManager{
		availability: make(map[string]Availability),
		clock:        clk,
	}
}

func (m *MemoryManager) SaveAvailability(ctx context.Context, backend string, available bool) error {
	checkedAt := m.clock.Now()

	m.availabilityMu.Lock()
	defer m.availabilityMu.Unlock()

	// Last writer wins. Concurrent probes may interleave; the value is advisory.
	m.availability[backend] = Availability{
		Available: available,
		CheckedAt: checkedAt,
	}
	return nil
}

func (m *MemoryManager) LoadAvailability(ctx context.Context, backend string) (Availability, error) {
	m.availabilityMu.RLock()
	defer m.availabilityMu.RUnlock()

	return m.availability[backend], nil
}

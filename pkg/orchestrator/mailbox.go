package orchestrator

import (
	"sync"

	"github.com/teslashibe/go-pepper/pkg/perception"
)

// DetectionMailbox is a single-slot hand-off between the vision callback
// and the control thread. Writes overwrite unconditionally; reads are
// destructive. The lock is held only for the pointer swap.
type DetectionMailbox struct {
	mu   sync.Mutex
	slot *perception.Detection
}

// Put overwrites the slot with d.
func (m *DetectionMailbox) Put(d *perception.Detection) {
	m.mu.Lock()
	m.slot = d
	m.mu.Unlock()
}

// Take consumes the slot, returning nil when empty.
func (m *DetectionMailbox) Take() *perception.Detection {
	m.mu.Lock()
	d := m.slot
	m.slot = nil
	m.mu.Unlock()
	return d
}

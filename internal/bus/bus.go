// Package bus holds the view-facing registry of running machines. Views
// dispatch events by machine id and read snapshots synchronously; lookups
// are fallible and callers degrade to an empty default when a machine is
// unknown. Machines never talk to each other through the bus: cross-machine
// notification goes through typed handles injected at composition time.
package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// Snapshot is a read-only view of one machine: the active state per region
// plus a deep copy of the context.
type Snapshot struct {
	Machine string            `json:"machine"`
	States  map[string]string `json:"states"`
	Context any               `json:"context"`
}

// Machine is a running state machine addressable through the bus.
type Machine interface {
	ID() string
	Dispatch(ctx context.Context, ev machine.Event) error
	Snapshot() Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Bus registers machines under stable string identifiers.
type Bus struct {
	mu       sync.RWMutex
	machines map[string]Machine
	logger   *logging.Logger
}

// New creates an empty registry.
func New(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{
		machines: make(map[string]Machine),
		logger:   logger.Named("bus"),
	}
}

// Register adds a machine. Registering the same id twice panics: ids are
// wiring-time constants, a collision is a programming error.
func (b *Bus) Register(m Machine) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.machines[m.ID()]; exists {
		panic(fmt.Sprintf("bus: machine %q already registered", m.ID()))
	}
	b.machines[m.ID()] = m
	b.logger.Debug("machine registered", "machine_id", m.ID())
}

// Dispatch unicasts an event to a named machine.
func (b *Bus) Dispatch(ctx context.Context, machineID string, ev machine.Event) error {
	m, ok := b.lookup(machineID)
	if !ok {
		return fmt.Errorf("bus: unknown machine %q", machineID)
	}
	return m.Dispatch(ctx, ev)
}

// Snapshot returns the named machine's snapshot, reporting whether the
// machine is known.
func (b *Bus) Snapshot(machineID string) (Snapshot, bool) {
	m, ok := b.lookup(machineID)
	if !ok {
		return Snapshot{}, false
	}
	return m.Snapshot(), true
}

// Lookup returns the registered machine itself, for callers that need to
// hold a subscription.
func (b *Bus) Lookup(machineID string) (Machine, bool) {
	return b.lookup(machineID)
}

// IDs lists registered machine identifiers in stable order.
func (b *Bus) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.machines))
	for id := range b.machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Bus) lookup(machineID string) (Machine, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.machines[machineID]
	return m, ok
}

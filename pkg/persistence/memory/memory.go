package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IBridgePersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Archived events: chain -> sequence -> Event
	events map[types.ChainName]map[uint64]*types.Event

	// Relay claims by event ID
	claims map[string]struct{}

	// Relay cursors by chain
	cursors map[types.ChainName]uint64

	nodeState *persistence.NodeState

	closed bool
}

var _ persistence.IBridgePersistence = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory persistence layer.
// Prints a loud warning since this should only be used for testing.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory persistence - ALL DATA WILL BE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set BRIDGE_PERSISTENCE_TYPE=badger for production")

	return &MemoryPersistence{
		events:  make(map[types.ChainName]map[uint64]*types.Event),
		claims:  make(map[string]struct{}),
		cursors: make(map[types.ChainName]uint64),
	}
}

// SaveEvent archives a ledger event.
func (m *MemoryPersistence) SaveEvent(event *types.Event) error {
	if err := persistence.ValidateEvent(event); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	byChain, ok := m.events[event.Chain]
	if !ok {
		byChain = make(map[uint64]*types.Event)
		m.events[event.Chain] = byChain
	}
	byChain[event.Sequence] = event.Copy()

	return nil
}

// LoadEvent retrieves an archived event.
func (m *MemoryPersistence) LoadEvent(chain types.ChainName, sequence uint64) (*types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	ev, ok := m.events[chain][sequence]
	if !ok {
		return nil, nil
	}
	return ev.Copy(), nil
}

// ListEvents returns archived events after the given sequence, ascending.
func (m *MemoryPersistence) ListEvents(chain types.ChainName, after uint64) ([]*types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	events := make([]*types.Event, 0)
	for seq, ev := range m.events[chain] {
		if seq > after {
			events = append(events, ev.Copy())
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Sequence < events[j].Sequence
	})

	return events, nil
}

// ClaimEvent marks an event as being handled.
func (m *MemoryPersistence) ClaimEvent(eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, persistence.ErrClosed
	}

	if _, claimed := m.claims[eventID]; claimed {
		return false, nil
	}
	m.claims[eventID] = struct{}{}
	return true, nil
}

// ReleaseEventClaim drops a claim.
func (m *MemoryPersistence) ReleaseEventClaim(eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.claims, eventID)
	return nil
}

// IsEventClaimed reports whether an event is claimed.
func (m *MemoryPersistence) IsEventClaimed(eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, persistence.ErrClosed
	}

	_, claimed := m.claims[eventID]
	return claimed, nil
}

// SetRelayCursor stores the relay cursor for a chain.
func (m *MemoryPersistence) SetRelayCursor(chain types.ChainName, sequence uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.cursors[chain] = sequence
	return nil
}

// GetRelayCursor returns the relay cursor for a chain.
func (m *MemoryPersistence) GetRelayCursor(chain types.ChainName) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, persistence.ErrClosed
	}

	return m.cursors[chain], nil
}

// SaveNodeState persists node operational state.
func (m *MemoryPersistence) SaveNodeState(state *persistence.NodeState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil NodeState")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	copied := *state
	m.nodeState = &copied
	return nil
}

// LoadNodeState retrieves node operational state.
func (m *MemoryPersistence) LoadNodeState() (*persistence.NodeState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	if m.nodeState == nil {
		return nil, nil
	}
	copied := *m.nodeState
	return &copied, nil
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}

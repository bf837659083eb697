package persistence

import "github.com/Layr-Labs/eigenx-bridge-go/pkg/types"

// IBridgePersistence persists bridge node state across restarts.
// All implementations must be thread-safe as the relay and HTTP handlers run concurrently.
//
// The interface supports:
// - An archive of ledger events, keyed by chain and sequence number
// - Relay bookkeeping (per-event claims and a per-chain cursor)
// - Node operational state
// - Lifecycle management (close, health check)
type IBridgePersistence interface {
	// Event Archive

	// SaveEvent persists a ledger event keyed by (chain, sequence).
	// Idempotent - saving an event that already exists overwrites it with the same data.
	SaveEvent(event *types.Event) error

	// LoadEvent retrieves an event by chain and sequence number.
	// Returns nil if the event doesn't exist, error only on storage failure.
	LoadEvent(chain types.ChainName, sequence uint64) (*types.Event, error)

	// ListEvents returns the archived events of chain with sequence > after, sorted ascending.
	// Returns empty slice if there are none, error only on storage failure.
	ListEvents(chain types.ChainName, after uint64) ([]*types.Event, error)

	// Relay Bookkeeping

	// ClaimEvent atomically marks an event ID as being handled by the relay.
	// Returns true if this call made the claim, false if the event was already claimed.
	ClaimEvent(eventID string) (bool, error)

	// ReleaseEventClaim drops a claim so the event can be handled again.
	// Idempotent - returns nil if the event is not claimed.
	ReleaseEventClaim(eventID string) error

	// IsEventClaimed reports whether an event ID is currently claimed.
	IsEventClaimed(eventID string) (bool, error)

	// SetRelayCursor stores the highest sequence number of chain the relay has handled.
	SetRelayCursor(chain types.ChainName, sequence uint64) error

	// GetRelayCursor returns the stored cursor for chain, 0 if none is set (first run).
	GetRelayCursor(chain types.ChainName) (uint64, error)

	// Node Operational State

	// SaveNodeState persists operational state. Overwrites any existing state.
	SaveNodeState(state *NodeState) error

	// LoadNodeState retrieves operational state.
	// Returns nil state if none exists (first run), error only on storage failure.
	LoadNodeState() (*NodeState, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}

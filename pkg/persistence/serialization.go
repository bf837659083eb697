package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

// MarshalEvent serializes an Event to JSON bytes.
func MarshalEvent(ev *types.Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("cannot marshal nil Event")
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Event to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalEvent deserializes an Event from JSON bytes.
func UnmarshalEvent(data []byte) (*types.Event, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var ev types.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Event: %w", err)
	}

	return &ev, nil
}

// MarshalNodeState serializes NodeState to JSON bytes.
func MarshalNodeState(ns *NodeState) ([]byte, error) {
	if ns == nil {
		return nil, fmt.Errorf("cannot marshal nil NodeState")
	}

	return json.Marshal(ns)
}

// UnmarshalNodeState deserializes NodeState from JSON bytes.
func UnmarshalNodeState(data []byte) (*NodeState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var ns NodeState
	if err := json.Unmarshal(data, &ns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to NodeState: %w", err)
	}

	return &ns, nil
}

// ValidateEvent checks the fields every archived event must carry
func ValidateEvent(ev *types.Event) error {
	if ev == nil {
		return fmt.Errorf("cannot save nil Event")
	}
	if ev.Chain == "" {
		return fmt.Errorf("event chain is required")
	}
	if ev.Sequence == 0 {
		return fmt.Errorf("event sequence must be positive")
	}
	return nil
}

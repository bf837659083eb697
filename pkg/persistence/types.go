package persistence

import "fmt"

// ErrClosed is returned by every operation after Close
var ErrClosed = fmt.Errorf("persistence layer is closed")

// NodeState represents operational state that must persist across restarts.
type NodeState struct {
	// NodeStartTime is the Unix timestamp when the node last started.
	NodeStartTime int64 `json:"nodeStartTime"`

	// AuthorityAddress is the validator identity the node signs with.
	// Stored so a restart with a different key is detected.
	AuthorityAddress string `json:"authorityAddress"`

	// MainChainLedger and SideChainLedger are the ledger addresses the state belongs to.
	MainChainLedger string `json:"mainChainLedger"`
	SideChainLedger string `json:"sideChainLedger"`
}

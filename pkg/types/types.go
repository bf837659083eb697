package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChainName identifies one side of the bridge
type ChainName string

const (
	ChainName_MainChain ChainName = "mainchain"
	ChainName_SideChain ChainName = "sidechain"
)

func (c ChainName) String() string {
	return string(c)
}

// Counterpart returns the chain on the other side of the bridge
func (c ChainName) Counterpart() ChainName {
	if c == ChainName_MainChain {
		return ChainName_SideChain
	}
	return ChainName_MainChain
}

type EventKind string

const (
	EventKind_Locked   EventKind = "Locked"
	EventKind_Unlocked EventKind = "Unlocked"
	EventKind_Minted   EventKind = "Minted"
	EventKind_Burned   EventKind = "Burned"
)

// Event is a ledger log entry. Sequence numbers are assigned per chain, starting at 1.
//
// Account is the indexed address of the event: the sender for Locked/Burned and
// the recipient for Unlocked/Minted. Destination is only set for Locked.
type Event struct {
	Chain       ChainName      `json:"chain"`
	Sequence    uint64         `json:"sequence"`
	Kind        EventKind      `json:"kind"`
	Account     common.Address `json:"account"`
	Amount      *big.Int       `json:"amount"`
	Destination common.Address `json:"destination,omitempty"`
	Nonce       uint64         `json:"nonce,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

// ID returns the globally unique identifier of the event
func (e *Event) ID() string {
	return EventID(e.Chain, e.Sequence)
}

func EventID(chain ChainName, sequence uint64) string {
	return fmt.Sprintf("%s:%d", chain, sequence)
}

// Copy returns a deep copy so callers cannot mutate ledger-owned events
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.Amount != nil {
		c.Amount = new(big.Int).Set(e.Amount)
	}
	return &c
}

// Domain binds an authorization to one ledger on one chain
type Domain struct {
	ChainID uint64         `json:"chainId"`
	Ledger  common.Address `json:"ledger"`
}

// Authorization is the data the signature authority attests to.
// When Domain is nil the message is the bare (recipient, amount) pair and Nonce is not signed.
type Authorization struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
	Nonce     uint64         `json:"nonce,omitempty"`
	Domain    *Domain        `json:"domain,omitempty"`
}

// ManualNonceBase splits the domain-bound nonce space. The relay uses source event
// sequence numbers, which stay below it; hand-requested attestations must use nonces at or above it.
const ManualNonceBase uint64 = 1 << 63

// IsManualNonce reports whether nonce belongs to the hand-requested range
func IsManualNonce(nonce uint64) bool {
	return nonce >= ManualNonceBase
}

// Attestation is an authorization together with the validator signatures over its digest
type Attestation struct {
	Authorization
	Signatures []hexutil.Bytes `json:"signatures"`
}

// SignatureBytes returns the signatures as plain byte slices
func (a *Attestation) SignatureBytes() [][]byte {
	sigs := make([][]byte, len(a.Signatures))
	for i, s := range a.Signatures {
		sigs[i] = []byte(s)
	}
	return sigs
}

// ValidatorSet is the identity (or quorum of identities) a ledger checks signatures against.
// A single validator is a set with one member and a threshold of one.
type ValidatorSet struct {
	Members   []common.Address `json:"members"`
	Threshold int              `json:"threshold"`
}

func SingleValidator(identity common.Address) *ValidatorSet {
	return &ValidatorSet{
		Members:   []common.Address{identity},
		Threshold: 1,
	}
}

func (vs *ValidatorSet) IsSet() bool {
	return vs != nil && len(vs.Members) > 0 && vs.Threshold > 0
}

func (vs *ValidatorSet) Copy() *ValidatorSet {
	if vs == nil {
		return nil
	}
	members := make([]common.Address, len(vs.Members))
	copy(members, vs.Members)
	return &ValidatorSet{Members: members, Threshold: vs.Threshold}
}

package types

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RequestEnvelope is the payload a caller signs for a state-changing request.
// The acting account is always the recovered signer, never a body field.
type RequestEnvelope struct {
	Path      string          `json:"path"`
	Timestamp int64           `json:"timestamp"`
	RequestId string          `json:"requestId"`
	Body      json.RawMessage `json:"body"`
}

// LockRequest is sent to POST /mainchain/lock, locking the signer's tokens
type LockRequest struct {
	Amount      *big.Int       `json:"amount"`
	Destination common.Address `json:"destination"`
}

// ReleaseRequest is sent to POST /mainchain/unlock and POST /sidechain/mint
type ReleaseRequest struct {
	Recipient  common.Address  `json:"recipient"`
	Amount     *big.Int        `json:"amount"`
	Nonce      uint64          `json:"nonce,omitempty"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

// BurnRequest is sent to POST /sidechain/burn, burning the signer's tokens
type BurnRequest struct {
	Amount *big.Int `json:"amount"`
}

// SetValidatorRequest is sent to POST /{chain}/validator and must be signed by the ledger owner
type SetValidatorRequest struct {
	Members   []common.Address `json:"members"`
	Threshold int              `json:"threshold"`
}

// AttestRequest is sent to POST /authority/attest
type AttestRequest struct {
	Chain     ChainName      `json:"chain"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
	Nonce     uint64         `json:"nonce,omitempty"`
}

// EventResponse wraps a single ledger event
type EventResponse struct {
	Event *Event `json:"event"`
}

// EventsResponse is returned by GET /events
type EventsResponse struct {
	Events []*Event `json:"events"`
}

// BalanceResponse is returned by the balance, custody and supply queries
type BalanceResponse struct {
	Address common.Address `json:"address,omitempty"`
	Amount  *big.Int       `json:"amount"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// TransferRequest is sent to POST /sidechain/transfer, moving the signer's tokens
type TransferRequest struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

// FaucetRequest is sent to POST /asset/faucet on dev nodes
type FaucetRequest struct {
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

// ApproveRequest is sent to POST /asset/approve. The owner is the signer and the spender is always the main-chain ledger.
type ApproveRequest struct {
	Amount *big.Int `json:"amount"`
}

// AttestationResponse is returned by POST /authority/attest
type AttestationResponse struct {
	Attestation *Attestation `json:"attestation"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status              string           `json:"status"`
	AuthorityAddress    common.Address   `json:"authorityAddress"`
	AuthorityIdentities []common.Address `json:"authorityIdentities"`
	MainChainLedger     common.Address   `json:"mainChainLedger"`
	SideChainLedger     common.Address   `json:"sideChainLedger"`
	MainChainSequence   uint64           `json:"mainChainSequence"`
	SideChainSequence   uint64           `json:"sideChainSequence"`
}

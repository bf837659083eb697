package transportSigner

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authorization"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

type SignedMessage struct {
	Payload   hexutil.Bytes `json:"payload"`   // Raw request bytes
	Hash      common.Hash   `json:"hash"`      // keccak256(payload)
	Signature hexutil.Bytes `json:"signature"` // secp256k1 signature over hash
}

type ITransportSigner interface {
	CreateAuthenticatedMessage(data []byte) (*SignedMessage, error)
	SignMessage(data []byte) ([]byte, error) // Sign raw message bytes, returns signature
	Address() common.Address
}

// VerifyAuthenticatedMessage checks that the hash commits to the payload and returns the signer
func VerifyAuthenticatedMessage(msg *SignedMessage) (common.Address, error) {
	if msg == nil || len(msg.Payload) == 0 {
		return common.Address{}, fmt.Errorf("%w: empty message", types.ErrUnauthenticated)
	}
	if crypto.Keccak256Hash(msg.Payload) != msg.Hash {
		return common.Address{}, fmt.Errorf("%w: hash does not match payload", types.ErrUnauthenticated)
	}
	signer, err := authorization.RecoverSigner(msg.Hash, msg.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
	}
	return signer, nil
}

// SignRequest wraps body in a request envelope bound to path and signs it
func SignRequest(signer ITransportSigner, path string, body interface{}, at time.Time) (*SignedMessage, error) {
	rawBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	payload, err := json.Marshal(&types.RequestEnvelope{
		Path:      path,
		Timestamp: at.Unix(),
		RequestId: uuid.New().String(),
		Body:      rawBody,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request envelope: %w", err)
	}
	return signer.CreateAuthenticatedMessage(payload)
}

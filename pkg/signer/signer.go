package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ISigner holds a secp256k1 key and signs 32 byte digests with it.
//
// SignDigest returns an Ethereum format signature: [R || S || V] with V in {27, 28}
// and S in the lower half of the curve order.
type ISigner interface {
	Address() common.Address
	KeyId() string
	SignDigest(ctx context.Context, digest common.Hash) ([]byte, error)
}

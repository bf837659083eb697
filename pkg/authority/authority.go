package authority

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authorization"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Authority is the off-chain signature authority. It signs every authorization it
// is asked to sign: deduplication of submissions is the relay's job, and replay
// rejection is the ledger's job when enabled.
//
// With more than one signer each attestation carries one signature per signer, for
// ledgers configured with a quorum validator set.
type Authority struct {
	signers []signer.ISigner
	logger  *zap.Logger
}

func NewAuthority(logger *zap.Logger, signers ...signer.ISigner) (*Authority, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("at least one signer is required")
	}
	return &Authority{
		signers: signers,
		logger:  logger,
	}, nil
}

// Identity returns the address of the first signer, the validator identity in single key deployments
func (a *Authority) Identity() common.Address {
	return a.signers[0].Address()
}

// Identities returns the addresses of all signers
func (a *Authority) Identities() []common.Address {
	ids := make([]common.Address, len(a.signers))
	for i, s := range a.signers {
		ids[i] = s.Address()
	}
	return ids
}

// Attest signs the canonical digest of auth with every signer
func (a *Authority) Attest(ctx context.Context, auth *types.Authorization) (*types.Attestation, error) {
	digest, err := authorization.Digest(auth)
	if err != nil {
		return nil, err
	}

	sigs := make([]hexutil.Bytes, 0, len(a.signers))
	for _, s := range a.signers {
		sig, err := s.SignDigest(ctx, digest)
		if err != nil {
			return nil, fmt.Errorf("signer %s failed: %w", s.Address().String(), err)
		}
		sigs = append(sigs, sig)
	}

	a.logger.Sugar().Debugw("Signed authorization",
		"recipient", auth.Recipient.String(),
		"amount", auth.Amount.String(),
		"nonce", auth.Nonce,
		"domain_bound", auth.Domain != nil,
		"digest", digest.Hex(),
		"signatures", len(sigs),
	)

	return &types.Attestation{
		Authorization: *auth,
		Signatures:    sigs,
	}, nil
}

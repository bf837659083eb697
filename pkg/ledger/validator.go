package ledger

import (
	"fmt"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authorization"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// VerifySignatures checks that at least vs.Threshold distinct members of vs signed digest.
// Identities are recovered from the signatures; the caller never names the key being checked.
func VerifySignatures(vs *types.ValidatorSet, digest common.Hash, signatures [][]byte) error {
	if !vs.IsSet() {
		return fmt.Errorf("%w: %w", types.ErrInvalidSignature, types.ErrValidatorNotSet)
	}
	if len(signatures) == 0 {
		return fmt.Errorf("%w: no signatures supplied", types.ErrInvalidSignature)
	}

	recovered := lo.FilterMap(signatures, func(sig []byte, _ int) (common.Address, bool) {
		addr, err := authorization.RecoverSigner(digest, sig)
		return addr, err == nil
	})
	signers := lo.Uniq(lo.Filter(recovered, func(addr common.Address, _ int) bool {
		return lo.Contains(vs.Members, addr)
	}))

	if len(signers) < vs.Threshold {
		return fmt.Errorf("%w: %d of %d required validator signatures", types.ErrInvalidSignature, len(signers), vs.Threshold)
	}
	return nil
}

// normalizeValidatorSet dedupes members and checks the threshold is satisfiable
func normalizeValidatorSet(members []common.Address, threshold int) (*types.ValidatorSet, error) {
	unique := lo.Uniq(members)
	if len(unique) == 0 {
		return nil, fmt.Errorf("validator set must have at least one member")
	}
	if lo.Contains(unique, common.Address{}) {
		return nil, fmt.Errorf("validator set cannot contain the zero address")
	}
	if threshold < 1 || threshold > len(unique) {
		return nil, fmt.Errorf("threshold must be between 1 and %d, got %d", len(unique), threshold)
	}
	return &types.ValidatorSet{Members: unique, Threshold: threshold}, nil
}

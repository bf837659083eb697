package authority

import (
	"context"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authorization"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer/localSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Authority(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	ctx := context.Background()

	s1, err := localSigner.GenerateLocalSigner(l)
	require.NoError(t, err)
	s2, err := localSigner.GenerateLocalSigner(l)
	require.NoError(t, err)

	recipient := common.HexToAddress("0x00000000000000000000000000000000000000D0")

	t.Run("requires a signer", func(t *testing.T) {
		_, err := NewAuthority(l)
		require.Error(t, err)
	})

	t.Run("signature recovers to the authority identity", func(t *testing.T) {
		a, err := NewAuthority(l, s1)
		require.NoError(t, err)
		assert.Equal(t, s1.Address(), a.Identity())

		att, err := a.Attest(ctx, &types.Authorization{Recipient: recipient, Amount: big.NewInt(100)})
		require.NoError(t, err)
		require.Len(t, att.Signatures, 1)
		assert.Equal(t, recipient, att.Recipient)
		assert.Equal(t, big.NewInt(100), att.Amount)

		recovered, err := authorization.RecoverAuthorizationSigner(&att.Authorization, att.Signatures[0])
		require.NoError(t, err)
		assert.Equal(t, s1.Address(), recovered)
	})

	t.Run("signs the same pair again on request", func(t *testing.T) {
		a, err := NewAuthority(l, s1)
		require.NoError(t, err)

		auth := &types.Authorization{Recipient: recipient, Amount: big.NewInt(5)}
		first, err := a.Attest(ctx, auth)
		require.NoError(t, err)
		second, err := a.Attest(ctx, auth)
		require.NoError(t, err)

		r1, err := authorization.RecoverAuthorizationSigner(auth, first.Signatures[0])
		require.NoError(t, err)
		r2, err := authorization.RecoverAuthorizationSigner(auth, second.Signatures[0])
		require.NoError(t, err)
		assert.Equal(t, r1, r2)
	})

	t.Run("multi signer attestation carries one signature per signer", func(t *testing.T) {
		a, err := NewAuthority(l, s1, s2)
		require.NoError(t, err)
		assert.Equal(t, []common.Address{s1.Address(), s2.Address()}, a.Identities())

		auth := &types.Authorization{
			Recipient: recipient,
			Amount:    big.NewInt(9),
			Nonce:     3,
			Domain:    &types.Domain{ChainID: 31337, Ledger: common.HexToAddress("0x01")},
		}
		att, err := a.Attest(ctx, auth)
		require.NoError(t, err)
		require.Len(t, att.Signatures, 2)

		for i, expected := range a.Identities() {
			recovered, err := authorization.RecoverAuthorizationSigner(auth, att.Signatures[i])
			require.NoError(t, err)
			assert.Equal(t, expected, recovered)
		}
	})

	t.Run("rejects invalid amount", func(t *testing.T) {
		a, err := NewAuthority(l, s1)
		require.NoError(t, err)
		_, err = a.Attest(ctx, &types.Authorization{Recipient: recipient, Amount: big.NewInt(0)})
		require.ErrorIs(t, err, types.ErrInvalidAmount)
	})
}

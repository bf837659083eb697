package sidechain

import (
	"context"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authority"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer/localSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000A2")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000A3")
	ledgerID = common.HexToAddress("0x00000000000000000000000000000000000000B2")
)

func newTestLedger(t *testing.T, replay bool) (*Ledger, *authority.Authority) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	sc, err := NewLedger(&ledger.Config{
		ChainID:          2,
		Address:          ledgerID,
		Owner:            owner,
		ReplayProtection: replay,
	}, l)
	require.NoError(t, err)

	s, err := localSigner.GenerateLocalSigner(l)
	require.NoError(t, err)
	a, err := authority.NewAuthority(l, s)
	require.NoError(t, err)
	require.NoError(t, sc.SetValidator(owner, a.Identity()))
	return sc, a
}

func sign(t *testing.T, a *authority.Authority, recipient common.Address, amount int64) []byte {
	att, err := a.Attest(context.Background(), &types.Authorization{Recipient: recipient, Amount: big.NewInt(amount)})
	require.NoError(t, err)
	return att.Signatures[0]
}

func Test_Mint(t *testing.T) {
	t.Run("valid signature mints", func(t *testing.T) {
		sc, a := newTestLedger(t, false)
		ev, err := sc.Mint(bob, big.NewInt(100), sign(t, a, bob, 100))
		require.NoError(t, err)
		assert.Equal(t, types.EventKind_Minted, ev.Kind)
		assert.Equal(t, types.ChainName_SideChain, ev.Chain)
		assert.Equal(t, bob, ev.Account)
		assert.Equal(t, big.NewInt(100), sc.BalanceOf(bob))
		assert.Equal(t, big.NewInt(100), sc.TotalSupply())
	})

	t.Run("invalid signature leaves supply unchanged", func(t *testing.T) {
		sc, a := newTestLedger(t, false)
		_, err := sc.Mint(alice, big.NewInt(100), sign(t, a, bob, 100))
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		_, err = sc.Mint(bob, big.NewInt(100), []byte("short"))
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		assert.Zero(t, sc.TotalSupply().Sign())
		assert.Empty(t, sc.EventsSince(0))
	})

	t.Run("the same signed pair mints again", func(t *testing.T) {
		sc, a := newTestLedger(t, false)
		sig := sign(t, a, bob, 100)
		_, err := sc.Mint(bob, big.NewInt(100), sig)
		require.NoError(t, err)
		_, err = sc.Mint(bob, big.NewInt(100), sig)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(200), sc.TotalSupply())
	})

	t.Run("domain-bound mint is single use", func(t *testing.T) {
		sc, a := newTestLedger(t, true)
		att, err := a.Attest(context.Background(), &types.Authorization{
			Recipient: bob,
			Amount:    big.NewInt(100),
			Nonce:     1,
			Domain:    sc.Domain(),
		})
		require.NoError(t, err)

		_, err = sc.MintAttested(att)
		require.NoError(t, err)
		_, err = sc.MintAttested(att)
		require.ErrorIs(t, err, types.ErrReplayedAuthorization)
		assert.Equal(t, big.NewInt(100), sc.TotalSupply())
	})

	t.Run("supply overflow is rejected", func(t *testing.T) {
		sc, a := newTestLedger(t, false)
		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
		att, err := a.Attest(context.Background(), &types.Authorization{Recipient: bob, Amount: max})
		require.NoError(t, err)
		_, err = sc.MintAttested(att)
		require.NoError(t, err)

		_, err = sc.Mint(alice, big.NewInt(1), sign(t, a, alice, 1))
		require.ErrorIs(t, err, types.ErrInvalidAmount)
		assert.Equal(t, max, sc.TotalSupply())
		assert.Zero(t, sc.BalanceOf(alice).Sign())
	})
}

func Test_Burn(t *testing.T) {
	t.Run("burn reduces balance and supply", func(t *testing.T) {
		sc, a := newTestLedger(t, false)
		_, err := sc.Mint(bob, big.NewInt(100), sign(t, a, bob, 100))
		require.NoError(t, err)

		ev, err := sc.Burn(bob, big.NewInt(40))
		require.NoError(t, err)
		assert.Equal(t, types.EventKind_Burned, ev.Kind)
		assert.Equal(t, bob, ev.Account)
		assert.Equal(t, big.NewInt(40), ev.Amount)
		assert.Equal(t, uint64(2), ev.Sequence)
		assert.Equal(t, big.NewInt(60), sc.BalanceOf(bob))
		assert.Equal(t, big.NewInt(60), sc.TotalSupply())
	})

	t.Run("burning more than held fails", func(t *testing.T) {
		sc, a := newTestLedger(t, false)
		_, err := sc.Mint(bob, big.NewInt(10), sign(t, a, bob, 10))
		require.NoError(t, err)

		_, err = sc.Burn(bob, big.NewInt(11))
		require.ErrorIs(t, err, types.ErrInsufficientBalance)
		_, err = sc.Burn(alice, big.NewInt(1))
		require.ErrorIs(t, err, types.ErrInsufficientBalance)
		assert.Equal(t, big.NewInt(10), sc.TotalSupply())
		assert.Len(t, sc.EventsSince(0), 1)
	})

	t.Run("zero burn is invalid", func(t *testing.T) {
		sc, _ := newTestLedger(t, false)
		_, err := sc.Burn(bob, big.NewInt(0))
		require.ErrorIs(t, err, types.ErrInvalidAmount)
	})
}

func Test_Transfer(t *testing.T) {
	sc, a := newTestLedger(t, false)
	_, err := sc.Mint(bob, big.NewInt(50), sign(t, a, bob, 50))
	require.NoError(t, err)

	require.ErrorIs(t, sc.Transfer(bob, alice, big.NewInt(51)), types.ErrInsufficientBalance)
	require.NoError(t, sc.Transfer(bob, alice, big.NewInt(20)))
	require.NoError(t, sc.Transfer(alice, alice, big.NewInt(20)))

	assert.Equal(t, big.NewInt(30), sc.BalanceOf(bob))
	assert.Equal(t, big.NewInt(20), sc.BalanceOf(alice))
	assert.Equal(t, big.NewInt(50), sc.TotalSupply())

	_, err = sc.Burn(alice, big.NewInt(20))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), sc.TotalSupply())
}

func Test_SetValidator(t *testing.T) {
	sc, a := newTestLedger(t, false)
	require.ErrorIs(t, sc.SetValidator(alice, alice), types.ErrNotOwner)
	assert.Equal(t, types.SingleValidator(a.Identity()), sc.Validators())
}

package mainchain

import (
	"context"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/asset/memoryAsset"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authority"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer/localSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000A2")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000A3")
	custodyID = common.HexToAddress("0x00000000000000000000000000000000000000B1")
)

type fixture struct {
	ledger    *Ledger
	asset     *memoryAsset.MemoryAsset
	authority *authority.Authority
	logger    *zap.Logger
}

func newFixture(t *testing.T, replay bool) *fixture {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	token := memoryAsset.NewMemoryAsset("TKN")
	mc, err := NewLedger(&ledger.Config{
		ChainID:          1,
		Address:          custodyID,
		Owner:            owner,
		ReplayProtection: replay,
	}, token, l)
	require.NoError(t, err)

	s, err := localSigner.GenerateLocalSigner(l)
	require.NoError(t, err)
	a, err := authority.NewAuthority(l, s)
	require.NoError(t, err)

	return &fixture{ledger: mc, asset: token, authority: a, logger: l}
}

// fund mints to account and approves the ledger to pull it
func (f *fixture) fund(t *testing.T, account common.Address, amount int64) {
	require.NoError(t, f.asset.Mint(account, big.NewInt(amount)))
	require.NoError(t, f.asset.Approve(account, custodyID, big.NewInt(amount)))
}

func (f *fixture) signature(t *testing.T, recipient common.Address, amount int64) []byte {
	att, err := f.authority.Attest(context.Background(), &types.Authorization{Recipient: recipient, Amount: big.NewInt(amount)})
	require.NoError(t, err)
	return att.Signatures[0]
}

func Test_NewLedger(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	token := memoryAsset.NewMemoryAsset("TKN")

	_, err = NewLedger(&ledger.Config{Address: custodyID, Owner: owner}, nil, l)
	require.Error(t, err)

	_, err = NewLedger(&ledger.Config{Chain: types.ChainName_SideChain, Address: custodyID, Owner: owner}, token, l)
	require.Error(t, err)

	mc, err := NewLedger(&ledger.Config{Address: custodyID, Owner: owner}, token, l)
	require.NoError(t, err)
	assert.Equal(t, types.ChainName_MainChain, mc.Chain())
	assert.Equal(t, owner, mc.Owner())
}

func Test_Lock(t *testing.T) {
	t.Run("moves value into custody and records the event", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)

		ev, err := f.ledger.Lock(alice, big.NewInt(100), bob)
		require.NoError(t, err)
		assert.Equal(t, types.EventKind_Locked, ev.Kind)
		assert.Equal(t, alice, ev.Account)
		assert.Equal(t, bob, ev.Destination)
		assert.Equal(t, big.NewInt(100), ev.Amount)
		assert.Equal(t, uint64(1), ev.Sequence)

		assert.Equal(t, big.NewInt(100), f.ledger.CustodyBalance())
		assert.Zero(t, f.asset.BalanceOf(alice).Sign())
	})

	t.Run("rejected transfer leaves no event", func(t *testing.T) {
		f := newFixture(t, false)
		require.NoError(t, f.asset.Mint(alice, big.NewInt(100)))

		// no approval
		_, err := f.ledger.Lock(alice, big.NewInt(50), bob)
		require.ErrorIs(t, err, types.ErrTransferFailed)

		// approved but underfunded
		require.NoError(t, f.asset.Approve(alice, custodyID, big.NewInt(500)))
		_, err = f.ledger.Lock(alice, big.NewInt(500), bob)
		require.ErrorIs(t, err, types.ErrTransferFailed)

		assert.Empty(t, f.ledger.EventsSince(0))
		assert.Zero(t, f.ledger.CustodyBalance().Sign())
		assert.Equal(t, big.NewInt(100), f.asset.BalanceOf(alice))
	})

	t.Run("invalid amounts", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)
		_, err := f.ledger.Lock(alice, big.NewInt(0), bob)
		require.ErrorIs(t, err, types.ErrInvalidAmount)
		_, err = f.ledger.Lock(alice, nil, bob)
		require.ErrorIs(t, err, types.ErrInvalidAmount)
	})
}

func Test_Unlock(t *testing.T) {
	t.Run("valid signature releases custody", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)
		require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
		_, err := f.ledger.Lock(alice, big.NewInt(100), bob)
		require.NoError(t, err)

		ev, err := f.ledger.Unlock(bob, big.NewInt(40), f.signature(t, bob, 40))
		require.NoError(t, err)
		assert.Equal(t, types.EventKind_Unlocked, ev.Kind)
		assert.Equal(t, bob, ev.Account)
		assert.Equal(t, uint64(2), ev.Sequence)

		assert.Equal(t, big.NewInt(60), f.ledger.CustodyBalance())
		assert.Equal(t, big.NewInt(40), f.asset.BalanceOf(bob))
	})

	t.Run("altered recipient or amount is rejected", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)
		require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
		_, err := f.ledger.Lock(alice, big.NewInt(100), bob)
		require.NoError(t, err)

		sig := f.signature(t, bob, 40)
		_, err = f.ledger.Unlock(alice, big.NewInt(40), sig)
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		_, err = f.ledger.Unlock(bob, big.NewInt(41), sig)
		require.ErrorIs(t, err, types.ErrInvalidSignature)

		assert.Equal(t, big.NewInt(100), f.ledger.CustodyBalance())
		assert.Len(t, f.ledger.EventsSince(0), 1)
	})

	t.Run("signature from another key is rejected", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)
		require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
		_, err := f.ledger.Lock(alice, big.NewInt(100), bob)
		require.NoError(t, err)

		other := newFixture(t, false)
		_, err = f.ledger.Unlock(bob, big.NewInt(40), other.signature(t, bob, 40))
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		assert.Equal(t, big.NewInt(100), f.ledger.CustodyBalance())
	})

	t.Run("unset validator rejects everything", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)
		_, err := f.ledger.Lock(alice, big.NewInt(100), bob)
		require.NoError(t, err)

		_, err = f.ledger.Unlock(bob, big.NewInt(40), f.signature(t, bob, 40))
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		require.ErrorIs(t, err, types.ErrValidatorNotSet)
	})

	t.Run("custody shortfall fails without state change", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 10)
		require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
		_, err := f.ledger.Lock(alice, big.NewInt(10), bob)
		require.NoError(t, err)

		_, err = f.ledger.Unlock(bob, big.NewInt(11), f.signature(t, bob, 11))
		require.ErrorIs(t, err, types.ErrTransferFailed)
		assert.Equal(t, big.NewInt(10), f.ledger.CustodyBalance())
		assert.Len(t, f.ledger.EventsSince(0), 1)
	})

	t.Run("the same signed pair unlocks again while custody lasts", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)
		require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
		_, err := f.ledger.Lock(alice, big.NewInt(100), bob)
		require.NoError(t, err)

		sig := f.signature(t, bob, 40)
		_, err = f.ledger.Unlock(bob, big.NewInt(40), sig)
		require.NoError(t, err)
		_, err = f.ledger.Unlock(bob, big.NewInt(40), sig)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(80), f.asset.BalanceOf(bob))
		assert.Equal(t, big.NewInt(20), f.ledger.CustodyBalance())

		_, err = f.ledger.Unlock(bob, big.NewInt(40), sig)
		require.ErrorIs(t, err, types.ErrTransferFailed)
	})

	t.Run("rotated validator invalidates old signatures", func(t *testing.T) {
		f := newFixture(t, false)
		f.fund(t, alice, 100)
		require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
		_, err := f.ledger.Lock(alice, big.NewInt(100), bob)
		require.NoError(t, err)
		sig := f.signature(t, bob, 40)

		other := newFixture(t, false)
		require.NoError(t, f.ledger.SetValidator(owner, other.authority.Identity()))
		_, err = f.ledger.Unlock(bob, big.NewInt(40), sig)
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		_, err = f.ledger.Unlock(bob, big.NewInt(40), other.signature(t, bob, 40))
		require.NoError(t, err)
	})
}

func Test_SetValidator(t *testing.T) {
	f := newFixture(t, false)
	require.ErrorIs(t, f.ledger.SetValidator(alice, alice), types.ErrNotOwner)
	assert.Nil(t, f.ledger.Validators())
	require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
	assert.Equal(t, types.SingleValidator(f.authority.Identity()), f.ledger.Validators())
}

func Test_ReleaseWithReplayProtection(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, alice, 100)
	require.NoError(t, f.ledger.SetValidator(owner, f.authority.Identity()))
	lockEv, err := f.ledger.Lock(alice, big.NewInt(100), bob)
	require.NoError(t, err)

	att, err := f.authority.Attest(context.Background(), &types.Authorization{
		Recipient: bob,
		Amount:    big.NewInt(40),
		Nonce:     lockEv.Sequence,
		Domain:    f.ledger.Domain(),
	})
	require.NoError(t, err)

	ev, err := f.ledger.Release(att)
	require.NoError(t, err)
	assert.Equal(t, lockEv.Sequence, ev.Nonce)

	_, err = f.ledger.Release(att)
	require.ErrorIs(t, err, types.ErrReplayedAuthorization)
	assert.Equal(t, big.NewInt(60), f.ledger.CustodyBalance())

	// the bare pair signature no longer verifies here
	_, err = f.ledger.Unlock(bob, big.NewInt(40), f.signature(t, bob, 40))
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	_, err = f.ledger.Release(nil)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func Test_ReleaseWithQuorum(t *testing.T) {
	f := newFixture(t, false)
	f.fund(t, alice, 100)
	_, err := f.ledger.Lock(alice, big.NewInt(100), bob)
	require.NoError(t, err)

	s2, err := localSigner.GenerateLocalSigner(f.logger)
	require.NoError(t, err)
	s3, err := localSigner.GenerateLocalSigner(f.logger)
	require.NoError(t, err)
	quorum, err := authority.NewAuthority(f.logger, s2, s3)
	require.NoError(t, err)

	members := append([]common.Address{f.authority.Identity()}, quorum.Identities()...)
	require.ErrorIs(t, f.ledger.SetValidatorSet(alice, members, 2), types.ErrNotOwner)
	require.NoError(t, f.ledger.SetValidatorSet(owner, members, 2))

	single, err := f.authority.Attest(context.Background(), &types.Authorization{Recipient: bob, Amount: big.NewInt(30)})
	require.NoError(t, err)
	_, err = f.ledger.Release(single)
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	pair, err := quorum.Attest(context.Background(), &types.Authorization{Recipient: bob, Amount: big.NewInt(30)})
	require.NoError(t, err)
	_, err = f.ledger.Release(pair)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), f.asset.BalanceOf(bob))
}

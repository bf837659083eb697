package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authorization"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000A2")
	ledgerID = common.HexToAddress("0x00000000000000000000000000000000000000B1")
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *recordingHandler) HandleEvent(_ context.Context, ev *types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func newTestBase(t *testing.T, replay bool) *Base {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	b, err := NewBase(&Config{
		Chain:            types.ChainName_SideChain,
		ChainID:          31337,
		Address:          ledgerID,
		Owner:            owner,
		ReplayProtection: replay,
	}, l)
	require.NoError(t, err)
	return b
}

func sign(t *testing.T, digest common.Hash) ([]byte, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	return sig, crypto.PubkeyToAddress(key.PublicKey)
}

func Test_NewBase(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	_, err = NewBase(nil, l)
	require.Error(t, err)

	_, err = NewBase(&Config{Chain: types.ChainName_MainChain, Address: ledgerID}, l)
	require.Error(t, err)

	_, err = NewBase(&Config{Chain: "elsewhere", Address: ledgerID, Owner: owner}, l)
	require.Error(t, err)
}

func Test_VerifySignatures(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("bridge"))
	sigA, addrA := sign(t, digest)
	sigB, addrB := sign(t, digest)
	sigC, addrC := sign(t, digest)

	t.Run("unset validator", func(t *testing.T) {
		err := VerifySignatures(nil, digest, [][]byte{sigA})
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		require.ErrorIs(t, err, types.ErrValidatorNotSet)
	})

	t.Run("single validator", func(t *testing.T) {
		require.NoError(t, VerifySignatures(types.SingleValidator(addrA), digest, [][]byte{sigA}))
		require.ErrorIs(t, VerifySignatures(types.SingleValidator(addrA), digest, [][]byte{sigB}), types.ErrInvalidSignature)
		require.ErrorIs(t, VerifySignatures(types.SingleValidator(addrA), digest, nil), types.ErrInvalidSignature)
	})

	t.Run("quorum counts distinct members", func(t *testing.T) {
		vs := &types.ValidatorSet{Members: []common.Address{addrA, addrB, addrC}, Threshold: 2}
		require.NoError(t, VerifySignatures(vs, digest, [][]byte{sigA, sigC}))
		require.ErrorIs(t, VerifySignatures(vs, digest, [][]byte{sigA, sigA}), types.ErrInvalidSignature)
		require.ErrorIs(t, VerifySignatures(vs, digest, [][]byte{sigB}), types.ErrInvalidSignature)
	})

	t.Run("malformed and foreign signatures are ignored", func(t *testing.T) {
		foreign, _ := sign(t, digest)
		vs := &types.ValidatorSet{Members: []common.Address{addrA, addrB}, Threshold: 2}
		err := VerifySignatures(vs, digest, [][]byte{sigA, []byte{0x01}, foreign})
		require.ErrorIs(t, err, types.ErrInvalidSignature)
		require.NoError(t, VerifySignatures(vs, digest, [][]byte{[]byte{0x01}, sigA, foreign, sigB}))
	})
}

func Test_ValidatorAdministration(t *testing.T) {
	validator := common.HexToAddress("0x00000000000000000000000000000000000000C1")

	t.Run("unset at deploy", func(t *testing.T) {
		b := newTestBase(t, false)
		assert.Nil(t, b.Validators())
	})

	t.Run("owner sets a single validator", func(t *testing.T) {
		b := newTestBase(t, false)
		require.NoError(t, b.SetValidator(owner, validator))
		assert.Equal(t, types.SingleValidator(validator), b.Validators())
	})

	t.Run("non-owner is rejected and state is unchanged", func(t *testing.T) {
		b := newTestBase(t, false)
		require.NoError(t, b.SetValidator(owner, validator))
		err := b.SetValidator(stranger, stranger)
		require.ErrorIs(t, err, types.ErrNotOwner)
		assert.Equal(t, types.SingleValidator(validator), b.Validators())
	})

	t.Run("quorum validation", func(t *testing.T) {
		b := newTestBase(t, false)
		other := common.HexToAddress("0x00000000000000000000000000000000000000C2")
		require.Error(t, b.SetValidatorSet(owner, nil, 1))
		require.Error(t, b.SetValidatorSet(owner, []common.Address{validator}, 2))
		require.Error(t, b.SetValidatorSet(owner, []common.Address{validator, {}}, 1))
		require.Error(t, b.SetValidatorSet(owner, []common.Address{validator, validator}, 2))
		require.NoError(t, b.SetValidatorSet(owner, []common.Address{validator, other, validator}, 2))
		assert.Equal(t, &types.ValidatorSet{Members: []common.Address{validator, other}, Threshold: 2}, b.Validators())
	})

	t.Run("ownership transfer", func(t *testing.T) {
		b := newTestBase(t, false)
		require.ErrorIs(t, b.TransferOwnership(stranger, stranger), types.ErrNotOwner)
		require.Error(t, b.TransferOwnership(owner, common.Address{}))
		require.NoError(t, b.TransferOwnership(owner, stranger))
		assert.Equal(t, stranger, b.Owner())
		require.ErrorIs(t, b.SetValidator(owner, validator), types.ErrNotOwner)
		require.NoError(t, b.SetValidator(stranger, validator))
	})
}

func Test_Execute(t *testing.T) {
	t.Run("failed call commits nothing", func(t *testing.T) {
		b := newTestBase(t, false)
		h := &recordingHandler{}
		b.Subscribe(h)
		applied := false

		_, err := b.Execute(func(tx *Tx) error {
			tx.OnCommit(func() { applied = true })
			tx.Emit(&types.Event{Kind: types.EventKind_Burned, Amount: big.NewInt(1)})
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.False(t, applied)
		assert.Empty(t, b.EventsSince(0))
		assert.Empty(t, h.events)
	})

	t.Run("sequence numbers start at one and handlers see copies", func(t *testing.T) {
		b := newTestBase(t, false)
		h := &recordingHandler{}
		b.Subscribe(h)

		for i := 1; i <= 3; i++ {
			events, err := b.Execute(func(tx *Tx) error {
				tx.Emit(&types.Event{Kind: types.EventKind_Burned, Amount: big.NewInt(int64(i))})
				return nil
			})
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, uint64(i), events[0].Sequence)
			assert.Equal(t, types.ChainName_SideChain, events[0].Chain)
		}

		require.Len(t, h.events, 3)
		h.events[0].Amount.SetInt64(999)
		all := b.EventsSince(0)
		require.Len(t, all, 3)
		assert.Equal(t, big.NewInt(1), all[0].Amount)

		tail := b.EventsSince(2)
		require.Len(t, tail, 1)
		assert.Equal(t, uint64(3), tail[0].Sequence)
		assert.Empty(t, b.EventsSince(3))
		assert.Empty(t, b.EventsSince(100))
	})
}

func Test_SequenceOffset(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	b, err := NewBase(&Config{
		Chain:          types.ChainName_MainChain,
		Address:        ledgerID,
		Owner:          owner,
		SequenceOffset: 10,
	}, l)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b.LastSequence())

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func(tx *Tx) error {
			tx.Emit(&types.Event{Kind: types.EventKind_Locked, Amount: big.NewInt(1)})
			return nil
		})
		require.NoError(t, err)
	}

	all := b.EventsSince(0)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(11), all[0].Sequence)
	assert.Equal(t, uint64(12), all[1].Sequence)
	assert.Len(t, b.EventsSince(10), 2)
	assert.Len(t, b.EventsSince(11), 1)
	assert.Empty(t, b.EventsSince(12))
	assert.Equal(t, uint64(12), b.LastSequence())
}

func Test_Authorize(t *testing.T) {
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000D1")
	amount := big.NewInt(10)

	t.Run("legacy message verifies on every submission", func(t *testing.T) {
		b := newTestBase(t, false)
		assert.Nil(t, b.Domain())
		digest, err := authorization.Digest(&types.Authorization{Recipient: recipient, Amount: amount})
		require.NoError(t, err)
		sig, signer := sign(t, digest)
		require.NoError(t, b.SetValidator(owner, signer))

		for i := 0; i < 2; i++ {
			_, err := b.Execute(func(tx *Tx) error {
				return tx.Authorize(recipient, amount, 0, [][]byte{sig})
			})
			require.NoError(t, err)
		}
	})

	t.Run("domain-bound message consumes its nonce", func(t *testing.T) {
		b := newTestBase(t, true)
		require.Equal(t, &types.Domain{ChainID: 31337, Ledger: ledgerID}, b.Domain())

		digest, err := authorization.Digest(&types.Authorization{Recipient: recipient, Amount: amount, Nonce: 7, Domain: b.Domain()})
		require.NoError(t, err)
		sig, signer := sign(t, digest)
		require.NoError(t, b.SetValidator(owner, signer))

		_, err = b.Execute(func(tx *Tx) error {
			return tx.Authorize(recipient, amount, 7, [][]byte{sig})
		})
		require.NoError(t, err)

		_, err = b.Execute(func(tx *Tx) error {
			return tx.Authorize(recipient, amount, 7, [][]byte{sig})
		})
		require.ErrorIs(t, err, types.ErrReplayedAuthorization)
	})

	t.Run("nonce is not consumed when the call fails", func(t *testing.T) {
		b := newTestBase(t, true)
		digest, err := authorization.Digest(&types.Authorization{Recipient: recipient, Amount: amount, Nonce: 1, Domain: b.Domain()})
		require.NoError(t, err)
		sig, signer := sign(t, digest)
		require.NoError(t, b.SetValidator(owner, signer))

		_, err = b.Execute(func(tx *Tx) error {
			if err := tx.Authorize(recipient, amount, 1, [][]byte{sig}); err != nil {
				return err
			}
			return errors.New("downstream failure")
		})
		require.Error(t, err)

		_, err = b.Execute(func(tx *Tx) error {
			return tx.Authorize(recipient, amount, 1, [][]byte{sig})
		})
		require.NoError(t, err)
	})

	t.Run("legacy signature is rejected by a domain-bound ledger", func(t *testing.T) {
		b := newTestBase(t, true)
		digest, err := authorization.Digest(&types.Authorization{Recipient: recipient, Amount: amount})
		require.NoError(t, err)
		sig, signer := sign(t, digest)
		require.NoError(t, b.SetValidator(owner, signer))

		_, err = b.Execute(func(tx *Tx) error {
			return tx.Authorize(recipient, amount, 0, [][]byte{sig})
		})
		require.ErrorIs(t, err, types.ErrInvalidSignature)
	})
}

func Test_ToUint256(t *testing.T) {
	_, err := ToUint256(nil)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = ToUint256(big.NewInt(0))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = ToUint256(big.NewInt(-1))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = ToUint256(new(big.Int).Lsh(big.NewInt(1), 256))
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	v, err := ToUint256(big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v.Uint64())
}

package authorization

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRecipient = common.HexToAddress("0x1234567890123456789012345678901234567890")
	testLedger    = common.HexToAddress("0xABCDEF1234567890ABCDEF1234567890ABCDEF12")
)

func Test_EncodeMessage(t *testing.T) {
	t.Run("legacy encoding is two fixed width words", func(t *testing.T) {
		encoded, err := EncodeMessage(&types.Authorization{Recipient: testRecipient, Amount: big.NewInt(100)})
		require.NoError(t, err)
		require.Len(t, encoded, 64)

		assert.Equal(t, make([]byte, 12), encoded[0:12])
		assert.Equal(t, testRecipient.Bytes(), encoded[12:32])
		assert.Equal(t, common.LeftPadBytes(big.NewInt(100).Bytes(), 32), encoded[32:64])
	})

	t.Run("domain encoding is five words", func(t *testing.T) {
		encoded, err := EncodeMessage(&types.Authorization{
			Recipient: testRecipient,
			Amount:    big.NewInt(100),
			Nonce:     7,
			Domain:    &types.Domain{ChainID: 31337, Ledger: testLedger},
		})
		require.NoError(t, err)
		require.Len(t, encoded, 160)
		assert.Equal(t, testLedger.Bytes(), encoded[140:160])
	})

	t.Run("rejects invalid amounts", func(t *testing.T) {
		for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1), new(big.Int).Lsh(big.NewInt(1), 256)} {
			_, err := EncodeMessage(&types.Authorization{Recipient: testRecipient, Amount: amount})
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidAmount))
		}
	})

	t.Run("accepts max uint256", func(t *testing.T) {
		maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
		_, err := EncodeMessage(&types.Authorization{Recipient: testRecipient, Amount: maxUint256})
		require.NoError(t, err)
	})
}

func Test_Digest(t *testing.T) {
	t.Run("distinct pairs give distinct digests", func(t *testing.T) {
		// Under a packed encoding these two would collide on the concatenated bytes.
		a := &types.Authorization{Recipient: common.HexToAddress("0x00000000000000000000000000000000000001"), Amount: big.NewInt(0x0100)}
		b := &types.Authorization{Recipient: common.HexToAddress("0x00000000000000000000000000000000000100"), Amount: big.NewInt(0x01)}

		da, err := Digest(a)
		require.NoError(t, err)
		db, err := Digest(b)
		require.NoError(t, err)
		assert.NotEqual(t, da, db)
	})

	t.Run("digest is deterministic", func(t *testing.T) {
		auth := &types.Authorization{Recipient: testRecipient, Amount: big.NewInt(42)}
		d1, err := Digest(auth)
		require.NoError(t, err)
		d2, err := Digest(auth)
		require.NoError(t, err)
		assert.Equal(t, d1, d2)
	})

	t.Run("nonce and domain change the digest", func(t *testing.T) {
		base := &types.Authorization{Recipient: testRecipient, Amount: big.NewInt(42)}
		legacy, err := Digest(base)
		require.NoError(t, err)

		withDomain := *base
		withDomain.Domain = &types.Domain{ChainID: 1, Ledger: testLedger}
		domainDigest, err := Digest(&withDomain)
		require.NoError(t, err)
		assert.NotEqual(t, legacy, domainDigest)

		otherNonce := withDomain
		otherNonce.Nonce = 1
		nonceDigest, err := Digest(&otherNonce)
		require.NoError(t, err)
		assert.NotEqual(t, domainDigest, nonceDigest)

		otherChain := withDomain
		otherChain.Domain = &types.Domain{ChainID: 2, Ledger: testLedger}
		chainDigest, err := Digest(&otherChain)
		require.NoError(t, err)
		assert.NotEqual(t, domainDigest, chainDigest)
	})

	t.Run("legacy digest ignores nonce", func(t *testing.T) {
		d1, err := Digest(&types.Authorization{Recipient: testRecipient, Amount: big.NewInt(42), Nonce: 1})
		require.NoError(t, err)
		d2, err := Digest(&types.Authorization{Recipient: testRecipient, Amount: big.NewInt(42), Nonce: 2})
		require.NoError(t, err)
		assert.Equal(t, d1, d2)
	})
}

func Test_RecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signerAddress := crypto.PubkeyToAddress(key.PublicKey)

	auth := &types.Authorization{Recipient: testRecipient, Amount: big.NewInt(100)}
	digest, err := Digest(auth)
	require.NoError(t, err)

	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	t.Run("recovers the signer", func(t *testing.T) {
		recovered, err := RecoverSigner(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, signerAddress, recovered)
	})

	t.Run("accepts 27/28 recovery byte", func(t *testing.T) {
		ethSig := make([]byte, len(sig))
		copy(ethSig, sig)
		ethSig[64] += 27

		recovered, err := RecoverSigner(digest, ethSig)
		require.NoError(t, err)
		assert.Equal(t, signerAddress, recovered)
		assert.Less(t, sig[64], byte(27), "input signature must not be mutated")
	})

	t.Run("altered recipient recovers a different address", func(t *testing.T) {
		altered := &types.Authorization{Recipient: common.HexToAddress("0x1234567890123456789012345678901234567891"), Amount: big.NewInt(100)}
		recovered, err := RecoverAuthorizationSigner(altered, sig)
		if err == nil {
			assert.NotEqual(t, signerAddress, recovered)
		}
	})

	t.Run("altered amount recovers a different address", func(t *testing.T) {
		altered := &types.Authorization{Recipient: testRecipient, Amount: big.NewInt(101)}
		recovered, err := RecoverAuthorizationSigner(altered, sig)
		if err == nil {
			assert.NotEqual(t, signerAddress, recovered)
		}
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := RecoverSigner(digest, sig[:64])
		require.Error(t, err)
	})

	t.Run("rejects high-S signature", func(t *testing.T) {
		s := new(big.Int).SetBytes(sig[32:64])
		highS := new(big.Int).Sub(crypto.S256().Params().N, s)

		malleable := make([]byte, len(sig))
		copy(malleable, sig)
		copy(malleable[32:64], common.LeftPadBytes(highS.Bytes(), 32))
		malleable[64] ^= 1

		_, err := RecoverSigner(digest, malleable)
		require.Error(t, err)
	})
}

package authorization

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/*
Authorization messages

The signature authority attests to a fixed-width ABI encoding so that no two
distinct messages share a digest:

  legacy:        abi.encode(address recipient, uint256 amount)
  domain-bound:  abi.encode(address recipient, uint256 amount, uint256 nonce,
                            uint256 chainId, address ledger)

digest = keccak256(encoding). Signatures are 65 byte [R || S || V] secp256k1
signatures with V in {0,1} or {27,28}.

The legacy message carries no nonce or chain tag: a legacy signature is valid
forever and on any ledger trusting the same validator. Ledgers that enable
replay protection switch to the domain-bound message.
*/

const SignatureLength = 65

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)

	legacyArguments = abi.Arguments{
		{Name: "recipient", Type: addressType},
		{Name: "amount", Type: uint256Type},
	}

	domainArguments = abi.Arguments{
		{Name: "recipient", Type: addressType},
		{Name: "amount", Type: uint256Type},
		{Name: "nonce", Type: uint256Type},
		{Name: "chainId", Type: uint256Type},
		{Name: "ledger", Type: addressType},
	}
)

// ValidateAmount rejects nil, non-positive and wider than 256 bit amounts
func ValidateAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: amount is required", types.ErrInvalidAmount)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %s", types.ErrInvalidAmount, amount.String())
	}
	if amount.BitLen() > 256 {
		return fmt.Errorf("%w: amount exceeds uint256", types.ErrInvalidAmount)
	}
	return nil
}

// EncodeMessage returns the canonical byte encoding of an authorization
func EncodeMessage(auth *types.Authorization) ([]byte, error) {
	if auth == nil {
		return nil, fmt.Errorf("authorization is nil")
	}
	if err := ValidateAmount(auth.Amount); err != nil {
		return nil, err
	}

	if auth.Domain == nil {
		return legacyArguments.Pack(auth.Recipient, auth.Amount)
	}

	return domainArguments.Pack(
		auth.Recipient,
		auth.Amount,
		new(big.Int).SetUint64(auth.Nonce),
		new(big.Int).SetUint64(auth.Domain.ChainID),
		auth.Domain.Ledger,
	)
}

// Digest returns keccak256 of the canonical encoding
func Digest(auth *types.Authorization) (common.Hash, error) {
	encoded, err := EncodeMessage(auth)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode authorization: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// RecoverSigner recovers the address that produced signature over digest.
// High-S signatures are rejected so a signature has exactly one valid encoding.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, true) {
		return common.Address{}, fmt.Errorf("invalid signature values")
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// RecoverAuthorizationSigner digests auth and recovers the signer of signature
func RecoverAuthorizationSigner(auth *types.Authorization, signature []byte) (common.Address, error) {
	digest, err := Digest(auth)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverSigner(digest, signature)
}

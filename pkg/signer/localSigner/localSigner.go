package localSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalSigner keeps the private key in process memory. Intended for devnets and tests.
type LocalSigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
	keyId      string
}

var _ signer.ISigner = (*LocalSigner)(nil)

func NewLocalSigner(privateKey *ecdsa.PrivateKey, logger *zap.Logger) (*LocalSigner, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())

	logger.Info("Loaded local signing key",
		zap.String("keyId", keyId),
		zap.String("address", address.String()),
	)

	return &LocalSigner{
		logger:     logger,
		privateKey: privateKey,
		address:    address,
		keyId:      keyId,
	}, nil
}

// NewLocalSignerFromHex loads a hex private key, with or without the 0x prefix
func NewLocalSignerFromHex(privateKeyHex string, logger *zap.Logger) (*LocalSigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key from hex: %w", err)
	}
	return NewLocalSigner(privateKey, logger)
}

// GenerateLocalSigner creates a signer with a fresh random key
func GenerateLocalSigner(logger *zap.Logger) (*LocalSigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return NewLocalSigner(privateKey, logger)
}

func (l *LocalSigner) Address() common.Address {
	return l.address
}

func (l *LocalSigner) KeyId() string {
	return l.keyId
}

func (l *LocalSigner) SignDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	signature, err := crypto.Sign(digest.Bytes(), l.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with key %s: %w", l.keyId, err)
	}
	signature[64] += 27

	l.logger.Debug("Signed digest with local key",
		zap.String("keyId", l.keyId),
		zap.String("digest", digest.Hex()),
	)

	return signature, nil
}

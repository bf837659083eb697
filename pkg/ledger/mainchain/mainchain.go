// Package mainchain implements the custody side of the bridge. Value is locked into the
// ledger's own account on the underlying asset and released only against validator
// signatures.
package mainchain

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/asset"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Ledger struct {
	*ledger.Base
	asset asset.IAsset
}

func NewLedger(cfg *ledger.Config, underlying asset.IAsset, logger *zap.Logger) (*Ledger, error) {
	if underlying == nil {
		return nil, fmt.Errorf("underlying asset cannot be nil")
	}
	if cfg != nil && cfg.Chain == "" {
		cfg.Chain = types.ChainName_MainChain
	}
	if cfg != nil && cfg.Chain != types.ChainName_MainChain {
		return nil, fmt.Errorf("main-chain ledger cannot be configured for chain %q", cfg.Chain)
	}
	base, err := ledger.NewBase(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Ledger{Base: base, asset: underlying}, nil
}

// Lock pulls amount from caller into custody and records a Locked event for destination
// on the sidechain. The caller must have approved the ledger address on the asset.
func (l *Ledger) Lock(caller common.Address, amount *big.Int, destination common.Address) (*types.Event, error) {
	if _, err := ledger.ToUint256(amount); err != nil {
		return nil, err
	}

	events, err := l.Execute(func(tx *ledger.Tx) error {
		if err := l.asset.TransferFrom(l.Address(), caller, l.Address(), amount); err != nil {
			return fmt.Errorf("%w: lock %s from %s: %w", types.ErrTransferFailed, amount.String(), caller.String(), err)
		}
		tx.Emit(&types.Event{
			Kind:        types.EventKind_Locked,
			Account:     caller,
			Amount:      new(big.Int).Set(amount),
			Destination: destination,
		})
		return nil
	})
	if err != nil {
		l.Logger().Sugar().Debugw("Lock rejected", "caller", caller.String(), "amount", amount.String(), "error", err)
		return nil, err
	}

	l.Logger().Sugar().Infow("Locked",
		"sender", caller.String(),
		"amount", amount.String(),
		"destination", destination.String(),
		"sequence", events[0].Sequence,
	)
	return events[0], nil
}

// Unlock releases amount from custody to recipient when signature is a valid validator
// signature over (recipient, amount).
func (l *Ledger) Unlock(recipient common.Address, amount *big.Int, signature []byte) (*types.Event, error) {
	return l.release(recipient, amount, 0, [][]byte{signature})
}

// Release is Unlock for a full attestation: a nonce for domain-bound messages and
// one or more signatures for a validator quorum.
func (l *Ledger) Release(att *types.Attestation) (*types.Event, error) {
	if att == nil {
		return nil, fmt.Errorf("%w: attestation cannot be nil", types.ErrInvalidSignature)
	}
	return l.release(att.Recipient, att.Amount, att.Nonce, att.SignatureBytes())
}

func (l *Ledger) release(recipient common.Address, amount *big.Int, nonce uint64, signatures [][]byte) (*types.Event, error) {
	if _, err := ledger.ToUint256(amount); err != nil {
		return nil, err
	}

	events, err := l.Execute(func(tx *ledger.Tx) error {
		if err := tx.Authorize(recipient, amount, nonce, signatures); err != nil {
			return err
		}
		if err := l.asset.Transfer(l.Address(), recipient, amount); err != nil {
			return fmt.Errorf("%w: unlock %s to %s: %w", types.ErrTransferFailed, amount.String(), recipient.String(), err)
		}
		tx.Emit(&types.Event{
			Kind:    types.EventKind_Unlocked,
			Account: recipient,
			Amount:  new(big.Int).Set(amount),
			Nonce:   nonce,
		})
		return nil
	})
	if err != nil {
		l.Logger().Sugar().Warnw("Unlock rejected", "recipient", recipient.String(), "amount", amount.String(), "error", err)
		return nil, err
	}

	l.Logger().Sugar().Infow("Unlocked",
		"recipient", recipient.String(),
		"amount", amount.String(),
		"sequence", events[0].Sequence,
	)
	return events[0], nil
}

// CustodyBalance is the underlying asset balance held by the ledger
func (l *Ledger) CustodyBalance() *big.Int {
	return l.asset.BalanceOf(l.Address())
}

func (l *Ledger) Asset() asset.IAsset {
	return l.asset
}

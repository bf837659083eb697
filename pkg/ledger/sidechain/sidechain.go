// Package sidechain implements the representation token. Tokens are minted against
// validator signatures and burned freely by holders to redeem on the main chain.
package sidechain

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

type Ledger struct {
	*ledger.Base
	balances    map[common.Address]*uint256.Int
	totalSupply *uint256.Int
}

func NewLedger(cfg *ledger.Config, logger *zap.Logger) (*Ledger, error) {
	if cfg != nil && cfg.Chain == "" {
		cfg.Chain = types.ChainName_SideChain
	}
	if cfg != nil && cfg.Chain != types.ChainName_SideChain {
		return nil, fmt.Errorf("sidechain ledger cannot be configured for chain %q", cfg.Chain)
	}
	base, err := ledger.NewBase(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		Base:        base,
		balances:    make(map[common.Address]*uint256.Int),
		totalSupply: new(uint256.Int),
	}, nil
}

// Mint credits amount to recipient when signature is a valid validator signature over
// (recipient, amount).
func (l *Ledger) Mint(recipient common.Address, amount *big.Int, signature []byte) (*types.Event, error) {
	return l.mint(recipient, amount, 0, [][]byte{signature})
}

// MintAttested is Mint for a full attestation
func (l *Ledger) MintAttested(att *types.Attestation) (*types.Event, error) {
	if att == nil {
		return nil, fmt.Errorf("%w: attestation cannot be nil", types.ErrInvalidSignature)
	}
	return l.mint(att.Recipient, att.Amount, att.Nonce, att.SignatureBytes())
}

func (l *Ledger) mint(recipient common.Address, amount *big.Int, nonce uint64, signatures [][]byte) (*types.Event, error) {
	value, err := ledger.ToUint256(amount)
	if err != nil {
		return nil, err
	}

	events, err := l.Execute(func(tx *ledger.Tx) error {
		if err := tx.Authorize(recipient, amount, nonce, signatures); err != nil {
			return err
		}
		supply, overflow := new(uint256.Int).AddOverflow(l.totalSupply, value)
		if overflow {
			return fmt.Errorf("%w: total supply overflow", types.ErrInvalidAmount)
		}
		// balance <= supply, so the recipient credit cannot overflow either
		balance := new(uint256.Int).Add(l.balanceOf(recipient), value)

		tx.OnCommit(func() {
			l.totalSupply = supply
			l.balances[recipient] = balance
		})
		tx.Emit(&types.Event{
			Kind:    types.EventKind_Minted,
			Account: recipient,
			Amount:  new(big.Int).Set(amount),
			Nonce:   nonce,
		})
		return nil
	})
	if err != nil {
		l.Logger().Sugar().Warnw("Mint rejected", "recipient", recipient.String(), "amount", amount.String(), "error", err)
		return nil, err
	}

	l.Logger().Sugar().Infow("Minted",
		"recipient", recipient.String(),
		"amount", amount.String(),
		"sequence", events[0].Sequence,
	)
	return events[0], nil
}

// Burn destroys amount of the caller's tokens and records a Burned event for redemption
func (l *Ledger) Burn(caller common.Address, amount *big.Int) (*types.Event, error) {
	value, err := ledger.ToUint256(amount)
	if err != nil {
		return nil, err
	}

	events, err := l.Execute(func(tx *ledger.Tx) error {
		held := l.balanceOf(caller)
		if held.Lt(value) {
			return fmt.Errorf("%w: %s holds %s, burning %s", types.ErrInsufficientBalance, caller.String(), held.Dec(), value.Dec())
		}
		balance := new(uint256.Int).Sub(held, value)
		supply := new(uint256.Int).Sub(l.totalSupply, value)

		tx.OnCommit(func() {
			l.balances[caller] = balance
			l.totalSupply = supply
		})
		tx.Emit(&types.Event{
			Kind:    types.EventKind_Burned,
			Account: caller,
			Amount:  new(big.Int).Set(amount),
		})
		return nil
	})
	if err != nil {
		l.Logger().Sugar().Debugw("Burn rejected", "caller", caller.String(), "amount", amount.String(), "error", err)
		return nil, err
	}

	l.Logger().Sugar().Infow("Burned",
		"sender", caller.String(),
		"amount", amount.String(),
		"sequence", events[0].Sequence,
	)
	return events[0], nil
}

// Transfer moves representation tokens between holders. No event is emitted.
func (l *Ledger) Transfer(caller, to common.Address, amount *big.Int) error {
	value, err := ledger.ToUint256(amount)
	if err != nil {
		return err
	}

	_, err = l.Execute(func(tx *ledger.Tx) error {
		held := l.balanceOf(caller)
		if held.Lt(value) {
			return fmt.Errorf("%w: %s holds %s, transferring %s", types.ErrInsufficientBalance, caller.String(), held.Dec(), value.Dec())
		}
		if caller == to {
			return nil
		}
		from := new(uint256.Int).Sub(held, value)
		dest := new(uint256.Int).Add(l.balanceOf(to), value)

		tx.OnCommit(func() {
			l.balances[caller] = from
			l.balances[to] = dest
		})
		return nil
	})
	return err
}

func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	var balance *big.Int
	l.View(func() {
		balance = l.balanceOf(account).ToBig()
	})
	return balance
}

func (l *Ledger) TotalSupply() *big.Int {
	var supply *big.Int
	l.View(func() {
		supply = l.totalSupply.ToBig()
	})
	return supply
}

// balanceOf must be called with the ledger lock held
func (l *Ledger) balanceOf(account common.Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

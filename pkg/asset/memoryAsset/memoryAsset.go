package memoryAsset

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/asset"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// MemoryAsset is an in-memory ERC-20 style token with uint256 balances
type MemoryAsset struct {
	mu          sync.RWMutex
	symbol      string
	balances    map[common.Address]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
	totalSupply *uint256.Int
}

var _ asset.IAsset = (*MemoryAsset)(nil)

func NewMemoryAsset(symbol string) *MemoryAsset {
	return &MemoryAsset{
		symbol:      symbol,
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[allowanceKey]*uint256.Int),
		totalSupply: new(uint256.Int),
	}
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be a non-negative integer")
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("amount exceeds uint256")
	}
	return v, nil
}

func (m *MemoryAsset) Symbol() string {
	return m.symbol
}

// Mint credits amount to an account out of thin air. Used to fund devnet and test accounts.
func (m *MemoryAsset) Mint(to common.Address, amount *big.Int) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	newSupply, overflow := new(uint256.Int).AddOverflow(m.totalSupply, v)
	if overflow {
		return fmt.Errorf("total supply overflow")
	}
	m.totalSupply = newSupply
	m.balances[to] = new(uint256.Int).Add(m.balanceOf(to), v)
	return nil
}

func (m *MemoryAsset) TotalSupply() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalSupply.ToBig()
}

func (m *MemoryAsset) BalanceOf(account common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceOf(account).ToBig()
}

func (m *MemoryAsset) Allowance(owner, spender common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowance(owner, spender).ToBig()
}

func (m *MemoryAsset) Approve(owner, spender common.Address, amount *big.Int) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{owner: owner, spender: spender}] = v
	return nil
}

func (m *MemoryAsset) Transfer(from, to common.Address, amount *big.Int) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(from, to, v)
}

func (m *MemoryAsset) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := m.allowance(from, spender)
	if allowed.Lt(v) {
		return fmt.Errorf("%w: %s approved %s, need %s", asset.ErrInsufficientAllowance, from.String(), allowed.Dec(), v.Dec())
	}
	if err := m.move(from, to, v); err != nil {
		return err
	}
	m.allowances[allowanceKey{owner: from, spender: spender}] = new(uint256.Int).Sub(allowed, v)
	return nil
}

// move must be called with the write lock held
func (m *MemoryAsset) move(from, to common.Address, v *uint256.Int) error {
	fromBalance := m.balanceOf(from)
	if fromBalance.Lt(v) {
		return fmt.Errorf("%w: %s holds %s, need %s", asset.ErrInsufficientBalance, from.String(), fromBalance.Dec(), v.Dec())
	}
	m.balances[from] = new(uint256.Int).Sub(fromBalance, v)
	m.balances[to] = new(uint256.Int).Add(m.balanceOf(to), v)
	return nil
}

func (m *MemoryAsset) balanceOf(account common.Address) *uint256.Int {
	if b, ok := m.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

func (m *MemoryAsset) allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := m.allowances[allowanceKey{owner: owner, spender: spender}]; ok {
		return a
	}
	return new(uint256.Int)
}

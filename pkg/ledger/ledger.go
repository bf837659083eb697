package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authorization"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// IEventHandler is notified after a ledger call commits. Handlers must not block.
type IEventHandler interface {
	HandleEvent(ctx context.Context, event *types.Event) error
}

type Config struct {
	Chain   types.ChainName
	ChainID uint64
	// Address is the ledger's own account. The main-chain ledger custodies the asset here.
	Address common.Address
	Owner   common.Address
	// ReplayProtection switches verification to the domain-bound message and rejects
	// a nonce the second time it is presented. Off by default: a legacy signature over
	// (recipient, amount) verifies every time it is submitted.
	ReplayProtection bool
	// SequenceOffset is the sequence number of the last event of a previous ledger
	// instance. The first event of this instance gets SequenceOffset+1.
	SequenceOffset uint64
}

func (c *Config) Validate() error {
	if c.Chain != types.ChainName_MainChain && c.Chain != types.ChainName_SideChain {
		return fmt.Errorf("unknown chain %q", c.Chain)
	}
	if c.Address == (common.Address{}) {
		return fmt.Errorf("ledger address cannot be the zero address")
	}
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("ledger owner cannot be the zero address")
	}
	return nil
}

// Base holds the state shared by both ledgers: owner, validator identity, the event
// log and the consumed nonce set. All mutations run through Execute, one at a time.
type Base struct {
	mu         sync.Mutex
	config     Config
	owner      common.Address
	validators *types.ValidatorSet
	events     []*types.Event
	consumed   map[uint64]struct{}

	handlersMu sync.RWMutex
	handlers   []IEventHandler

	logger *zap.Logger
	now    func() time.Time
}

func NewBase(cfg *Config, logger *zap.Logger) (*Base, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ledger config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}
	return &Base{
		config:   *cfg,
		owner:    cfg.Owner,
		consumed: make(map[uint64]struct{}),
		logger:   logger.With(zap.String("chain", cfg.Chain.String())),
		now:      time.Now,
	}, nil
}

// Tx stages the effects of one ledger call. Nothing staged is visible until the
// function passed to Execute returns nil.
type Tx struct {
	base          *Base
	pendingEvents []*types.Event
	pendingNonces []uint64
	onCommit      []func()
}

// Execute runs fn with the ledger lock held. If fn returns an error every staged effect
// is discarded. Otherwise the staged commit hooks run, events are appended to the log and
// handlers are notified after the lock is released.
func (b *Base) Execute(fn func(tx *Tx) error) ([]*types.Event, error) {
	b.mu.Lock()
	tx := &Tx{base: b}
	if err := fn(tx); err != nil {
		b.mu.Unlock()
		return nil, err
	}

	for _, commit := range tx.onCommit {
		commit()
	}
	for _, nonce := range tx.pendingNonces {
		b.consumed[nonce] = struct{}{}
	}
	committed := make([]*types.Event, 0, len(tx.pendingEvents))
	for _, ev := range tx.pendingEvents {
		ev.Chain = b.config.Chain
		ev.Sequence = b.config.SequenceOffset + uint64(len(b.events)) + 1
		ev.Timestamp = b.now().Unix()
		b.events = append(b.events, ev)
		committed = append(committed, ev.Copy())
	}
	b.mu.Unlock()

	b.notify(committed)
	return committed, nil
}

func (b *Base) notify(events []*types.Event) {
	b.handlersMu.RLock()
	handlers := make([]IEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.handlersMu.RUnlock()

	for _, ev := range events {
		for _, h := range handlers {
			if err := h.HandleEvent(context.Background(), ev.Copy()); err != nil {
				b.logger.Sugar().Warnw("Event handler failed", "event", ev.ID(), "error", err)
			}
		}
	}
}

// View runs fn with the ledger lock held, for consistent reads of derived ledger state
func (b *Base) View(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

// Subscribe registers a handler for events committed from now on
func (b *Base) Subscribe(h IEventHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers = append(b.handlers, h)
}

// OnCommit registers a state mutation to apply if the call succeeds.
// Mutations must not fail; every check belongs before the call returns.
func (tx *Tx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

// Emit stages an event. Chain, sequence and timestamp are filled on commit.
func (tx *Tx) Emit(ev *types.Event) {
	tx.pendingEvents = append(tx.pendingEvents, ev)
}

// Authorize verifies validator signatures over (recipient, amount[, nonce]) for this
// ledger and, with replay protection on, stages consumption of the nonce.
func (tx *Tx) Authorize(recipient common.Address, amount *big.Int, nonce uint64, signatures [][]byte) error {
	b := tx.base
	auth := &types.Authorization{
		Recipient: recipient,
		Amount:    amount,
	}
	if b.config.ReplayProtection {
		auth.Nonce = nonce
		auth.Domain = b.domain()
	}

	digest, err := authorization.Digest(auth)
	if err != nil {
		return err
	}
	if err := VerifySignatures(b.validators, digest, signatures); err != nil {
		return err
	}

	if b.config.ReplayProtection {
		if _, used := b.consumed[nonce]; used {
			return fmt.Errorf("%w: nonce %d", types.ErrReplayedAuthorization, nonce)
		}
		for _, pending := range tx.pendingNonces {
			if pending == nonce {
				return fmt.Errorf("%w: nonce %d", types.ErrReplayedAuthorization, nonce)
			}
		}
		tx.pendingNonces = append(tx.pendingNonces, nonce)
	}
	return nil
}

// OnlyOwner fails with ErrNotOwner unless caller is the current owner
func (tx *Tx) OnlyOwner(caller common.Address) error {
	if caller != tx.base.owner {
		return fmt.Errorf("%w: %s", types.ErrNotOwner, caller.String())
	}
	return nil
}

// SetValidator replaces the validator identity with a single key. Owner only.
func (b *Base) SetValidator(caller common.Address, identity common.Address) error {
	return b.SetValidatorSet(caller, []common.Address{identity}, 1)
}

// SetValidatorSet installs a threshold-of-members validator set. Owner only.
func (b *Base) SetValidatorSet(caller common.Address, members []common.Address, threshold int) error {
	_, err := b.Execute(func(tx *Tx) error {
		if err := tx.OnlyOwner(caller); err != nil {
			return err
		}
		vs, err := normalizeValidatorSet(members, threshold)
		if err != nil {
			return err
		}
		tx.OnCommit(func() {
			b.validators = vs
		})
		return nil
	})
	if err != nil {
		return err
	}
	b.logger.Sugar().Infow("Validator set updated", "members", members, "threshold", threshold)
	return nil
}

// TransferOwnership hands the owner role to newOwner. Owner only.
func (b *Base) TransferOwnership(caller common.Address, newOwner common.Address) error {
	_, err := b.Execute(func(tx *Tx) error {
		if err := tx.OnlyOwner(caller); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return fmt.Errorf("new owner cannot be the zero address")
		}
		tx.OnCommit(func() {
			b.owner = newOwner
		})
		return nil
	})
	return err
}

func (b *Base) Owner() common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// Validators returns a copy of the current validator set, nil before the first SetValidator
func (b *Base) Validators() *types.ValidatorSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validators.Copy()
}

func (b *Base) Chain() types.ChainName {
	return b.config.Chain
}

func (b *Base) Address() common.Address {
	return b.config.Address
}

// Domain returns the domain signatures must be bound to, or nil when the ledger accepts legacy messages
func (b *Base) Domain() *types.Domain {
	if !b.config.ReplayProtection {
		return nil
	}
	return b.domain()
}

func (b *Base) domain() *types.Domain {
	return &types.Domain{ChainID: b.config.ChainID, Ledger: b.config.Address}
}

// EventsSince returns copies of the events with sequence > after, in order
func (b *Base) EventsSince(after uint64) []*types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := uint64(0)
	if after > b.config.SequenceOffset {
		start = after - b.config.SequenceOffset
	}
	if start >= uint64(len(b.events)) {
		return []*types.Event{}
	}
	out := make([]*types.Event, 0, uint64(len(b.events))-start)
	for _, ev := range b.events[start:] {
		out = append(out, ev.Copy())
	}
	return out
}

// LastSequence is the sequence number of the newest event, or the offset when there is none
func (b *Base) LastSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.SequenceOffset + uint64(len(b.events))
}

func (b *Base) Logger() *zap.Logger {
	return b.logger
}

// ToUint256 converts a positive big.Int amount, failing with ErrInvalidAmount otherwise
func ToUint256(amount *big.Int) (*uint256.Int, error) {
	if err := authorization.ValidateAmount(amount); err != nil {
		return nil, err
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("%w: amount exceeds uint256", types.ErrInvalidAmount)
	}
	return v, nil
}

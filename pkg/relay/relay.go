// Package relay carries bridge events across: Locked events on the main chain become
// sidechain mints and Burned events on the sidechain become main-chain unlocks.
//
// Each event is claimed in persistence before it is attested and submitted, so an event
// is relayed at most once even across restarts. Events of one chain are relayed strictly
// in sequence order and the relay cursor only moves past an event once it is handled.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/eventHandler"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// IAttestor produces validator signatures for an authorization
type IAttestor interface {
	Attest(ctx context.Context, auth *types.Authorization) (*types.Attestation, error)
}

// IEventSource is a ledger the relay reads events from
type IEventSource interface {
	Chain() types.ChainName
	EventsSince(after uint64) []*types.Event
	Subscribe(h ledger.IEventHandler)
}

// IMintSubmitter accepts attested mints. Domain is nil when the ledger takes legacy messages.
type IMintSubmitter interface {
	MintAttested(att *types.Attestation) (*types.Event, error)
	Domain() *types.Domain
}

// IUnlockSubmitter accepts attested unlocks. Domain is nil when the ledger takes legacy messages.
type IUnlockSubmitter interface {
	Release(att *types.Attestation) (*types.Event, error)
	Domain() *types.Domain
}

type RelayConfig struct {
	// MaxRetries bounds submission attempts per event per sync pass
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// PollInterval is how often both chains are re-synced without a live event
	PollInterval time.Duration
}

func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		MaxRetries:      5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		PollInterval:    10 * time.Second,
	}
}

type Relay struct {
	mainChain IEventSource
	sideChain IEventSource
	minter    IMintSubmitter
	unlocker  IUnlockSubmitter
	attestor  IAttestor
	store     persistence.IBridgePersistence
	config    *RelayConfig
	logger    *zap.Logger

	chainLocks map[types.ChainName]*sync.Mutex
}

func NewRelay(
	mainChain IEventSource,
	sideChain IEventSource,
	minter IMintSubmitter,
	unlocker IUnlockSubmitter,
	attestor IAttestor,
	store persistence.IBridgePersistence,
	config *RelayConfig,
	logger *zap.Logger,
) *Relay {
	if config == nil {
		config = DefaultRelayConfig()
	}
	return &Relay{
		mainChain: mainChain,
		sideChain: sideChain,
		minter:    minter,
		unlocker:  unlocker,
		attestor:  attestor,
		store:     store,
		config:    config,
		logger:    logger,
		chainLocks: map[types.ChainName]*sync.Mutex{
			types.ChainName_MainChain: {},
			types.ChainName_SideChain: {},
		},
	}
}

// Start catches up on both chains and then follows them until ctx is done
func (r *Relay) Start(ctx context.Context) error {
	mainHandler := eventHandler.NewEventHandler(r.logger)
	sideHandler := eventHandler.NewEventHandler(r.logger)
	r.mainChain.Subscribe(mainHandler)
	r.sideChain.Subscribe(sideHandler)

	if err := r.SyncOnce(ctx); err != nil {
		r.logger.Sugar().Warnw("Initial relay catch-up incomplete", "error", err)
	}

	// a live event only signals that its chain has news; the sync reads from the cursor
	go mainHandler.ListenToChannel(ctx, func(*types.Event) {
		_ = r.syncChain(ctx, r.mainChain)
	})
	go sideHandler.ListenToChannel(ctx, func(*types.Event) {
		_ = r.syncChain(ctx, r.sideChain)
	})

	go func() {
		ticker := time.NewTicker(r.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = r.SyncOnce(ctx)
			case <-ctx.Done():
				r.logger.Sugar().Info("Relay stopping")
				return
			}
		}
	}()

	r.logger.Sugar().Infow("Relay started", "pollInterval", r.config.PollInterval)
	return nil
}

// SyncOnce relays every pending event on both chains
func (r *Relay) SyncOnce(ctx context.Context) error {
	mainErr := r.syncChain(ctx, r.mainChain)
	sideErr := r.syncChain(ctx, r.sideChain)
	return errors.Join(mainErr, sideErr)
}

func (r *Relay) syncChain(ctx context.Context, source IEventSource) error {
	chain := source.Chain()
	lock := r.chainLocks[chain]
	lock.Lock()
	defer lock.Unlock()

	cursor, err := r.store.GetRelayCursor(chain)
	if err != nil {
		return fmt.Errorf("failed to read relay cursor for %s: %w", chain, err)
	}

	for _, ev := range source.EventsSince(cursor) {
		if err := r.relayEvent(ctx, ev); err != nil {
			r.logger.Sugar().Errorw("Failed to relay event, will retry on next sync",
				"event", ev.ID(),
				"error", err,
			)
			return err
		}
		if err := r.store.SetRelayCursor(chain, ev.Sequence); err != nil {
			return fmt.Errorf("failed to advance relay cursor for %s: %w", chain, err)
		}
	}
	return nil
}

func (r *Relay) relayEvent(ctx context.Context, ev *types.Event) error {
	var submit func(*types.Attestation) (*types.Event, error)
	var domain *types.Domain
	var recipient = ev.Account

	switch {
	case ev.Chain == types.ChainName_MainChain && ev.Kind == types.EventKind_Locked:
		submit = r.minter.MintAttested
		domain = r.minter.Domain()
		recipient = ev.Destination
	case ev.Chain == types.ChainName_SideChain && ev.Kind == types.EventKind_Burned:
		submit = r.unlocker.Release
		domain = r.unlocker.Domain()
	default:
		return nil
	}

	claimed, err := r.store.ClaimEvent(ev.ID())
	if err != nil {
		return fmt.Errorf("failed to claim event %s: %w", ev.ID(), err)
	}
	if !claimed {
		r.logger.Sugar().Debugw("Event already claimed, skipping", "event", ev.ID())
		return nil
	}

	auth := &types.Authorization{
		Recipient: recipient,
		Amount:    ev.Amount,
	}
	if domain != nil {
		auth.Nonce = ev.Sequence
		auth.Domain = domain
	}

	// signatures are produced once and reused across submission retries
	var att *types.Attestation
	var result *types.Event
	op := func() error {
		if att == nil {
			signed, err := r.attestor.Attest(ctx, auth)
			if err != nil {
				return err
			}
			att = signed
		}
		target, err := submit(att)
		if errors.Is(err, types.ErrInvalidAmount) || errors.Is(err, types.ErrReplayedAuthorization) {
			return backoff.Permanent(err)
		}
		result = target
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.config.InitialInterval
	bo.MaxInterval = r.config.MaxInterval
	bo.MaxElapsedTime = 0

	err = backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(bo, r.config.MaxRetries), ctx), func(err error, wait time.Duration) {
		r.logger.Sugar().Warnw("Relay submission failed, retrying",
			"event", ev.ID(),
			"target", ev.Chain.Counterpart(),
			"wait", wait,
			"error", err,
		)
	})

	if errors.Is(err, types.ErrReplayedAuthorization) {
		r.logger.Sugar().Warnw("Authorization already consumed on target ledger",
			"event", ev.ID(),
			"target", ev.Chain.Counterpart(),
			"nonce", auth.Nonce,
		)
		return nil
	}
	if err != nil {
		if releaseErr := r.store.ReleaseEventClaim(ev.ID()); releaseErr != nil {
			r.logger.Sugar().Errorw("Failed to release event claim", "event", ev.ID(), "error", releaseErr)
		}
		return err
	}

	r.logger.Sugar().Infow("Relayed event",
		"source", ev.ID(),
		"kind", ev.Kind,
		"target", result.ID(),
		"recipient", recipient.String(),
		"amount", ev.Amount.String(),
	)
	return nil
}

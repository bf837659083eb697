package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/asset/memoryAsset"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/authority"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/eventHandler"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger/mainchain"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger/sidechain"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/relay"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

// Node hosts both ledgers of a bridge devnet together with the signature authority and the relay
type Node struct {
	Port    int
	DevMode bool

	Asset     *memoryAsset.MemoryAsset
	MainChain *mainchain.Ledger
	SideChain *sidechain.Ledger
	Authority *authority.Authority
	Relay     *relay.Relay

	owner              common.Address
	bootstrapValidator bool
	store              persistence.IBridgePersistence
	archiver           *eventHandler.ArchiveHandler
	server             *Server
	logger             *zap.Logger
	cancel             context.CancelFunc
}

// Config holds node configuration
type Config struct {
	Port int

	MainChainID     uint64
	SideChainID     uint64
	MainChainLedger common.Address
	SideChainLedger common.Address
	Owner           common.Address
	AssetSymbol     string

	ReplayProtection   bool
	BootstrapValidator bool
	DevMode            bool

	RateLimit float64
	RateBurst int

	Relay *relay.RelayConfig
}

// resumeOffset returns the highest sequence of chain the store already knows about, so a
// fresh ledger continues numbering after it and never reuses an archived or claimed ID
func resumeOffset(store persistence.IBridgePersistence, chain types.ChainName) (uint64, error) {
	cursor, err := store.GetRelayCursor(chain)
	if err != nil {
		return 0, err
	}
	events, err := store.ListEvents(chain, cursor)
	if err != nil {
		return 0, err
	}
	if len(events) > 0 {
		return events[len(events)-1].Sequence, nil
	}
	return cursor, nil
}

// NewNode creates a new node instance with dependency injection
func NewNode(cfg Config, s signer.ISigner, store persistence.IBridgePersistence, l *zap.Logger) (*Node, error) {
	if store == nil {
		return nil, fmt.Errorf("persistence cannot be nil")
	}

	mainOffset, err := resumeOffset(store, types.ChainName_MainChain)
	if err != nil {
		return nil, fmt.Errorf("failed to read main-chain resume point: %w", err)
	}
	sideOffset, err := resumeOffset(store, types.ChainName_SideChain)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidechain resume point: %w", err)
	}

	token := memoryAsset.NewMemoryAsset(cfg.AssetSymbol)

	mc, err := mainchain.NewLedger(&ledger.Config{
		Chain:            types.ChainName_MainChain,
		ChainID:          cfg.MainChainID,
		Address:          cfg.MainChainLedger,
		Owner:            cfg.Owner,
		ReplayProtection: cfg.ReplayProtection,
		SequenceOffset:   mainOffset,
	}, token, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create main-chain ledger: %w", err)
	}

	sc, err := sidechain.NewLedger(&ledger.Config{
		Chain:            types.ChainName_SideChain,
		ChainID:          cfg.SideChainID,
		Address:          cfg.SideChainLedger,
		Owner:            cfg.Owner,
		ReplayProtection: cfg.ReplayProtection,
		SequenceOffset:   sideOffset,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create sidechain ledger: %w", err)
	}

	auth, err := authority.NewAuthority(l, s)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature authority: %w", err)
	}

	archiver := eventHandler.NewArchiveHandler(store, l)
	mc.Subscribe(archiver)
	sc.Subscribe(archiver)

	n := &Node{
		Port:               cfg.Port,
		DevMode:            cfg.DevMode,
		Asset:              token,
		MainChain:          mc,
		SideChain:          sc,
		Authority:          auth,
		Relay:              relay.NewRelay(mc, sc, sc, mc, auth, store, cfg.Relay, l),
		owner:              cfg.Owner,
		bootstrapValidator: cfg.BootstrapValidator,
		store:              store,
		archiver:           archiver,
		logger:             l,
	}
	n.server = NewServer(n, cfg.Port, cfg.RateLimit, cfg.RateBurst)

	l.Sugar().Infow("Bridge node created",
		"authority", auth.Identity().String(),
		"mainChainLedger", cfg.MainChainLedger.String(),
		"sideChainLedger", cfg.SideChainLedger.String(),
		"mainChainResumeSequence", mainOffset,
		"sideChainResumeSequence", sideOffset,
		"replayProtection", cfg.ReplayProtection,
	)
	return n, nil
}

// Start verifies persistence, records node state, backfills the event archive and starts the relay and HTTP server
func (n *Node) Start(ctx context.Context) error {
	if err := n.store.HealthCheck(); err != nil {
		return fmt.Errorf("persistence health check failed: %w", err)
	}

	previous, err := n.store.LoadNodeState()
	if err != nil {
		return fmt.Errorf("failed to load node state: %w", err)
	}
	if previous != nil && previous.AuthorityAddress != n.Authority.Identity().String() {
		n.logger.Sugar().Warnw("Authority identity changed since last run",
			"previous", previous.AuthorityAddress,
			"current", n.Authority.Identity().String(),
		)
	}
	if err := n.store.SaveNodeState(&persistence.NodeState{
		NodeStartTime:    time.Now().Unix(),
		AuthorityAddress: n.Authority.Identity().String(),
		MainChainLedger:  n.MainChain.Address().String(),
		SideChainLedger:  n.SideChain.Address().String(),
	}); err != nil {
		return fmt.Errorf("failed to save node state: %w", err)
	}

	if n.bootstrapValidator {
		identity := n.Authority.Identity()
		if err := n.MainChain.SetValidator(n.owner, identity); err != nil {
			return fmt.Errorf("failed to bootstrap main-chain validator: %w", err)
		}
		if err := n.SideChain.SetValidator(n.owner, identity); err != nil {
			return fmt.Errorf("failed to bootstrap sidechain validator: %w", err)
		}
	}

	// Events committed while the store was failing are missing from the archive
	for _, source := range []*ledger.Base{n.MainChain.Base, n.SideChain.Base} {
		count, err := n.archiver.Backfill(source)
		if err != nil {
			return fmt.Errorf("failed to backfill %s event archive: %w", source.Chain(), err)
		}
		if count > 0 {
			n.logger.Sugar().Infow("Backfilled event archive", "chain", source.Chain(), "events", count)
		}
	}

	ctx, n.cancel = context.WithCancel(ctx)
	if err := n.Relay.Start(ctx); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	return n.server.Start()
}

// Stop shuts down the HTTP server and relay, then closes persistence
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	if err := n.server.Stop(); err != nil {
		n.logger.Sugar().Warnw("Failed to stop HTTP server", "error", err)
	}
	return n.store.Close()
}

func (n *Node) GetServer() *Server {
	return n.server
}

func (n *Node) GetStore() persistence.IBridgePersistence {
	return n.store
}

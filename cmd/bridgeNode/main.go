package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	internalAws "github.com/Layr-Labs/eigenx-bridge-go/internal/aws"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/config"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/node"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence/redis"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/relay"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer/awsKmsSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer/localSigner"
)

func main() {
	app := &cli.App{
		Name:  "bridge-node",
		Usage: "Main-chain / sidechain asset bridge node",
		Description: `Runs both bridge ledgers, the signature authority and the relay in one process.

Tokens locked on the main-chain ledger are minted on the sidechain once the relay
has the lock attested, and burning wrapped tokens releases the underlying asset.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8000,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvBridgePort},
			},
			&cli.Uint64Flag{
				Name:    "mainchain-id",
				Value:   uint64(config.ChainId_EthereumAnvil),
				Usage:   "Chain ID of the main chain",
				EnvVars: []string{config.EnvBridgeMainChainID},
			},
			&cli.Uint64Flag{
				Name:    "sidechain-id",
				Value:   uint64(config.ChainId_SidechainDevnet),
				Usage:   "Chain ID of the sidechain",
				EnvVars: []string{config.EnvBridgeSideChainID},
			},
			&cli.StringFlag{
				Name:     "mainchain-ledger",
				Usage:    "Address of the main-chain ledger (custody account)",
				EnvVars:  []string{config.EnvBridgeMainChainLedger},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "sidechain-ledger",
				Usage:    "Address of the sidechain ledger",
				EnvVars:  []string{config.EnvBridgeSideChainLedger},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Initial owner of both ledgers",
				EnvVars:  []string{config.EnvBridgeOwnerAddress},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "asset-symbol",
				Value:   "TKN",
				Usage:   "Symbol of the underlying asset",
				EnvVars: []string{config.EnvBridgeAssetSymbol},
			},
			&cli.BoolFlag{
				Name:    "replay-protection",
				Usage:   "Bind authorizations to a ledger and consume their nonces",
				EnvVars: []string{config.EnvBridgeReplayProtection},
			},
			&cli.StringFlag{
				Name:    "signer-type",
				Value:   string(config.SignerType_Local),
				Usage:   "Signature authority backend: local or aws-kms",
				EnvVars: []string{config.EnvBridgeSignerType},
			},
			&cli.StringFlag{
				Name:    "signer-private-key",
				Usage:   "secp256k1 private key (hex) for the local signer. A key is generated when empty",
				EnvVars: []string{config.EnvBridgeSignerPrivateKey},
			},
			&cli.StringFlag{
				Name:    "kms-key-id",
				Usage:   "AWS KMS key ID or alias for the aws-kms signer",
				EnvVars: []string{config.EnvBridgeKMSKeyID},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region override",
				EnvVars: []string{config.EnvBridgeAWSRegion},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Value:   string(config.PersistenceType_Memory),
				Usage:   "Persistence backend: memory, badger or redis",
				EnvVars: []string{config.EnvBridgePersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Value:   "./data/bridge",
				Usage:   "Data directory for badger persistence",
				EnvVars: []string{config.EnvBridgeDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Value:   "localhost:6379",
				Usage:   "Redis server address",
				EnvVars: []string{config.EnvBridgeRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvBridgeRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvBridgeRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix prepended to every Redis key",
				EnvVars: []string{config.EnvBridgeRedisKeyPrefix},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Value:   50,
				Usage:   "Requests per second accepted by the HTTP server",
				EnvVars: []string{config.EnvBridgeRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Value:   100,
				Usage:   "Burst size of the HTTP rate limiter",
				EnvVars: []string{config.EnvBridgeRateBurst},
			},
			&cli.Uint64Flag{
				Name:    "relay-max-retries",
				Value:   5,
				Usage:   "Submission retries per relayed event",
				EnvVars: []string{config.EnvBridgeRelayMaxRetries},
			},
			&cli.DurationFlag{
				Name:    "relay-poll-interval",
				Value:   10 * time.Second,
				Usage:   "Interval at which the relay rescans both ledgers",
				EnvVars: []string{config.EnvBridgeRelayPollInterval},
			},
			&cli.BoolFlag{
				Name:    "dev",
				Usage:   "Expose the asset faucet and attest endpoints",
				EnvVars: []string{config.EnvBridgeDevMode},
			},
			&cli.BoolFlag{
				Name:    "bootstrap-validator",
				Usage:   "Install the node's authority as validator on both ledgers at startup",
				EnvVars: []string{config.EnvBridgeBootstrap},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvBridgeVerbose},
			},
		},
		Action: runBridgeNode,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func parseBridgeConfig(c *cli.Context) *config.BridgeConfig {
	return &config.BridgeConfig{
		Port:               c.Int("port"),
		MainChainID:        config.ChainId(c.Uint64("mainchain-id")),
		SideChainID:        config.ChainId(c.Uint64("sidechain-id")),
		MainChainLedger:    c.String("mainchain-ledger"),
		SideChainLedger:    c.String("sidechain-ledger"),
		OwnerAddress:       c.String("owner"),
		AssetSymbol:        c.String("asset-symbol"),
		ReplayProtection:   c.Bool("replay-protection"),
		SignerType:         config.SignerType(c.String("signer-type")),
		SignerPrivateKey:   c.String("signer-private-key"),
		KMSKeyID:           c.String("kms-key-id"),
		AWSRegion:          c.String("aws-region"),
		PersistenceType:    config.PersistenceType(c.String("persistence-type")),
		DataPath:           c.String("data-path"),
		RedisAddress:       c.String("redis-address"),
		RedisPassword:      c.String("redis-password"),
		RedisDB:            c.Int("redis-db"),
		RedisKeyPrefix:     c.String("redis-key-prefix"),
		RateLimit:          c.Float64("rate-limit"),
		RateBurst:          c.Int("rate-burst"),
		RelayMaxRetries:    c.Uint64("relay-max-retries"),
		RelayPollInterval:  c.Duration("relay-poll-interval"),
		DevMode:            c.Bool("dev"),
		BootstrapValidator: c.Bool("bootstrap-validator"),
		Debug:              c.Bool("verbose"),
	}
}

func runBridgeNode(c *cli.Context) error {
	bridgeConfig := parseBridgeConfig(c)

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: bridgeConfig.Debug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	if err := bridgeConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l.Sugar().Infow("Using chains",
		"mainchain", config.GetChainName(bridgeConfig.MainChainID),
		"mainchain_id", bridgeConfig.MainChainID,
		"sidechain", config.GetChainName(bridgeConfig.SideChainID),
		"sidechain_id", bridgeConfig.SideChainID,
	)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authoritySigner, err := createSigner(ctx, bridgeConfig, l)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	store, err := createPersistence(bridgeConfig, l)
	if err != nil {
		return fmt.Errorf("failed to create persistence: %w", err)
	}

	relayConfig := relay.DefaultRelayConfig()
	relayConfig.MaxRetries = bridgeConfig.RelayMaxRetries
	relayConfig.PollInterval = bridgeConfig.RelayPollInterval

	n, err := node.NewNode(node.Config{
		Port:               bridgeConfig.Port,
		MainChainID:        uint64(bridgeConfig.MainChainID),
		SideChainID:        uint64(bridgeConfig.SideChainID),
		MainChainLedger:    common.HexToAddress(bridgeConfig.MainChainLedger),
		SideChainLedger:    common.HexToAddress(bridgeConfig.SideChainLedger),
		Owner:              common.HexToAddress(bridgeConfig.OwnerAddress),
		AssetSymbol:        bridgeConfig.AssetSymbol,
		ReplayProtection:   bridgeConfig.ReplayProtection,
		BootstrapValidator: bridgeConfig.BootstrapValidator,
		DevMode:            bridgeConfig.DevMode,
		RateLimit:          bridgeConfig.RateLimit,
		RateBurst:          bridgeConfig.RateBurst,
		Relay:              relayConfig,
	}, authoritySigner, store, l)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create node: %w", err)
	}

	if err := n.Start(ctx); err != nil {
		_ = n.Stop()
		return fmt.Errorf("failed to start node: %w", err)
	}

	l.Sugar().Infow("Bridge node running",
		"port", bridgeConfig.Port,
		"authority", n.Authority.Identity().String(),
		"persistence", bridgeConfig.PersistenceType,
		"devMode", bridgeConfig.DevMode,
	)

	<-ctx.Done()
	l.Sugar().Infow("Shutting down bridge node")
	return n.Stop()
}

func createSigner(ctx context.Context, cfg *config.BridgeConfig, l *zap.Logger) (signer.ISigner, error) {
	switch cfg.SignerType {
	case config.SignerType_AWSKMS:
		awsCfg, err := internalAws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		if identity, err := internalAws.GetCallerIdentity(ctx, awsCfg); err != nil {
			l.Sugar().Warnw("Could not resolve AWS caller identity", "error", err)
		} else if identity.Arn != nil {
			l.Sugar().Infow("Using AWS identity", "arn", *identity.Arn)
		}
		return awsKmsSigner.NewAWSKMSSignerFromConfig(ctx, awsCfg, cfg.KMSKeyID, l)
	default:
		if cfg.SignerPrivateKey == "" {
			l.Sugar().Warnw("No signer key configured, generating an ephemeral one")
			return localSigner.GenerateLocalSigner(l)
		}
		return localSigner.NewLocalSignerFromHex(cfg.SignerPrivateKey, l)
	}
}

func createPersistence(cfg *config.BridgeConfig, l *zap.Logger) (persistence.IBridgePersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceType_Badger:
		return badger.NewBadgerPersistence(cfg.DataPath, l)
	case config.PersistenceType_Redis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	default:
		return memory.NewMemoryPersistence(), nil
	}
}

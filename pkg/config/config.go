package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for bridge node configuration
const (
	EnvBridgePort              = "BRIDGE_PORT"
	EnvBridgeMainChainID       = "BRIDGE_MAINCHAIN_ID"
	EnvBridgeSideChainID       = "BRIDGE_SIDECHAIN_ID"
	EnvBridgeMainChainLedger   = "BRIDGE_MAINCHAIN_LEDGER"
	EnvBridgeSideChainLedger   = "BRIDGE_SIDECHAIN_LEDGER"
	EnvBridgeOwnerAddress      = "BRIDGE_OWNER_ADDRESS"
	EnvBridgeAssetSymbol       = "BRIDGE_ASSET_SYMBOL"
	EnvBridgeReplayProtection  = "BRIDGE_REPLAY_PROTECTION"
	EnvBridgeSignerType        = "BRIDGE_SIGNER_TYPE"
	EnvBridgeSignerPrivateKey  = "BRIDGE_SIGNER_PRIVATE_KEY"
	EnvBridgeKMSKeyID          = "BRIDGE_KMS_KEY_ID"
	EnvBridgeAWSRegion         = "BRIDGE_AWS_REGION"
	EnvBridgePersistenceType   = "BRIDGE_PERSISTENCE_TYPE"
	EnvBridgeDataPath          = "BRIDGE_DATA_PATH"
	EnvBridgeRedisAddress      = "BRIDGE_REDIS_ADDRESS"
	EnvBridgeRedisPassword     = "BRIDGE_REDIS_PASSWORD"
	EnvBridgeRedisDB           = "BRIDGE_REDIS_DB"
	EnvBridgeRedisKeyPrefix    = "BRIDGE_REDIS_KEY_PREFIX"
	EnvBridgeRateLimit         = "BRIDGE_RATE_LIMIT"
	EnvBridgeRateBurst         = "BRIDGE_RATE_BURST"
	EnvBridgeRelayMaxRetries   = "BRIDGE_RELAY_MAX_RETRIES"
	EnvBridgeRelayPollInterval = "BRIDGE_RELAY_POLL_INTERVAL"
	EnvBridgeDevMode           = "BRIDGE_DEV_MODE"
	EnvBridgeBootstrap         = "BRIDGE_BOOTSTRAP_VALIDATOR"
	EnvBridgeVerbose           = "BRIDGE_VERBOSE"
)

type ChainId uint64

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
	ChainId_SidechainDevnet ChainId = 31338
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
	ChainName_SidechainDevnet ChainName = "sidechain-devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
	ChainId_SidechainDevnet: ChainName_SidechainDevnet,
}

// GetChainName returns the well-known name of a chain ID, or its number for unknown chains
func GetChainName(id ChainId) ChainName {
	if name, ok := ChainIdToName[id]; ok {
		return name
	}
	return ChainName(fmt.Sprintf("chain-%d", id))
}

type SignerType string

const (
	SignerType_Local  SignerType = "local"
	SignerType_AWSKMS SignerType = "aws-kms"
)

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

// BridgeConfig represents the complete configuration for a bridge node
type BridgeConfig struct {
	Port int `json:"port"`

	// Chain configuration
	MainChainID     ChainId `json:"main_chain_id"`
	SideChainID     ChainId `json:"side_chain_id"`
	MainChainLedger string  `json:"main_chain_ledger"` // custody account of the main-chain ledger
	SideChainLedger string  `json:"side_chain_ledger"`
	OwnerAddress    string  `json:"owner_address"` // initial owner of both ledgers
	AssetSymbol     string  `json:"asset_symbol"`

	ReplayProtection bool `json:"replay_protection"`

	// Signature authority
	SignerType       SignerType `json:"signer_type"`
	SignerPrivateKey string     `json:"signer_private_key"`
	KMSKeyID         string     `json:"kms_key_id"`
	AWSRegion        string     `json:"aws_region"`

	// Persistence
	PersistenceType PersistenceType `json:"persistence_type"`
	DataPath        string          `json:"data_path"`
	RedisAddress    string          `json:"redis_address"`
	RedisPassword   string          `json:"redis_password"`
	RedisDB         int             `json:"redis_db"`
	RedisKeyPrefix  string          `json:"redis_key_prefix"`

	// HTTP rate limiting, requests per second
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	RelayMaxRetries   uint64        `json:"relay_max_retries"`
	RelayPollInterval time.Duration `json:"relay_poll_interval"`

	// DevMode exposes the asset faucet and the attest endpoint
	DevMode bool `json:"dev_mode"`
	// BootstrapValidator installs the node's own authority as validator on both ledgers at startup
	BootstrapValidator bool `json:"bootstrap_validator"`
	Debug   bool `json:"debug"`
}

func isHexKey(key string) bool {
	return len(strings.TrimPrefix(key, "0x")) == 64
}

// Validate checks the bridge configuration and returns every problem at once
func (c *BridgeConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	if c.MainChainID == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("mainChainId"), "mainChainId is required"))
	}
	if c.SideChainID == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("sideChainId"), "sideChainId is required"))
	}
	if c.MainChainID != 0 && c.MainChainID == c.SideChainID {
		allErrors = append(allErrors, field.Invalid(field.NewPath("sideChainId"), c.SideChainID, "must differ from mainChainId"))
	}

	for name, addr := range map[string]string{
		"mainChainLedger": c.MainChainLedger,
		"sideChainLedger": c.SideChainLedger,
		"ownerAddress":    c.OwnerAddress,
	} {
		if addr == "" {
			allErrors = append(allErrors, field.Required(field.NewPath(name), name+" is required"))
		} else if !common.IsHexAddress(addr) {
			allErrors = append(allErrors, field.Invalid(field.NewPath(name), addr, "must be a hex address"))
		}
	}

	switch c.SignerType {
	case SignerType_Local:
		if c.SignerPrivateKey != "" && !isHexKey(c.SignerPrivateKey) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("signerPrivateKey"), "<redacted>", "must be 32 bytes (64 hex chars)"))
		}
	case SignerType_AWSKMS:
		if c.KMSKeyID == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("kmsKeyId"), "kmsKeyId is required for the aws-kms signer"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("signerType"), c.SignerType,
			[]string{string(SignerType_Local), string(SignerType_AWSKMS)}))
	}

	switch c.PersistenceType {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if c.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDb"), c.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType,
			[]string{string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis)}))
	}

	if c.RateLimit <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "must be positive"))
	}
	if c.RateBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateBurst"), c.RateBurst, "must be at least 1"))
	}
	if c.RelayPollInterval <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("relayPollInterval"), c.RelayPollInterval.String(), "must be positive"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

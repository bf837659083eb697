package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixEvent       = "bridge:event:"
	keyPrefixClaim       = "bridge:claim:"
	keyPrefixCursor      = "bridge:cursor:"
	keyPrefixNodeState   = "bridge:nodestate:main"
	keySchemaVersion     = "bridge:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Sorted set per chain, scored by sequence number, for range listing
	keyPrefixEventIndex = "bridge:events:index:"
)

// RedisPersistence is a production-ready persistence implementation using Redis.
// Provides durable, distributed storage suitable for cloud-native deployments.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IBridgePersistence = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:bridge:event:mainchain:1".
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) eventKey(chain types.ChainName, sequence uint64) string {
	return r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixEvent, chain, sequence))
}

func (r *RedisPersistence) eventIndexKey(chain types.ChainName) string {
	return r.prefixKey(keyPrefixEventIndex + chain.String())
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveEvent archives a ledger event
func (r *RedisPersistence) SaveEvent(event *types.Event) error {
	if err := persistence.ValidateEvent(event); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()

	data, err := persistence.MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal Event: %w", err)
	}

	// Store the event and its index entry in one pipeline
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.eventKey(event.Chain, event.Sequence), data, 0)
	pipe.ZAdd(ctx, r.eventIndexKey(event.Chain), redis.Z{
		Score:  float64(event.Sequence),
		Member: strconv.FormatUint(event.Sequence, 10),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save Event: %w", err)
	}
	return nil
}

// LoadEvent retrieves an archived event
func (r *RedisPersistence) LoadEvent(chain types.ChainName, sequence uint64) (*types.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.eventKey(chain, sequence)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load Event: %w", err)
	}

	event, err := persistence.UnmarshalEvent(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal Event: %w", err)
	}
	return event, nil
}

// ListEvents returns archived events of a chain after a sequence number, in order
func (r *RedisPersistence) ListEvents(chain types.ChainName, after uint64) ([]*types.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.eventIndexKey(chain)

	sequences, err := r.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", after),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list Event sequences: %w", err)
	}

	events := make([]*types.Event, 0, len(sequences))
	if len(sequences) == 0 {
		return events, nil
	}

	keys := make([]string, len(sequences))
	for i, seq := range sequences {
		keys[i] = r.prefixKey(fmt.Sprintf("%s%s:%s", keyPrefixEvent, chain, seq))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Events: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.ZRem(ctx, indexKey, sequences[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for Event", "key", keys[i])
			continue
		}

		event, err := persistence.UnmarshalEvent([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal Event, skipping", "key", keys[i], "error", err)
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// ClaimEvent marks an event as being handled using SETNX
func (r *RedisPersistence) ClaimEvent(eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, persistence.ErrClosed
	}

	claimed, err := r.client.SetNX(context.Background(), r.prefixKey(keyPrefixClaim+eventID), time.Now().Unix(), 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}
	return claimed, nil
}

// ReleaseEventClaim drops a claim
func (r *RedisPersistence) ReleaseEventClaim(eventID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	return r.client.Del(context.Background(), r.prefixKey(keyPrefixClaim+eventID)).Err()
}

// IsEventClaimed reports whether an event is claimed
func (r *RedisPersistence) IsEventClaimed(eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, persistence.ErrClosed
	}

	n, err := r.client.Exists(context.Background(), r.prefixKey(keyPrefixClaim+eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read claim for %s: %w", eventID, err)
	}
	return n > 0, nil
}

// SetRelayCursor stores the relay cursor for a chain
func (r *RedisPersistence) SetRelayCursor(chain types.ChainName, sequence uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	key := r.prefixKey(keyPrefixCursor + chain.String())
	return r.client.Set(context.Background(), key, strconv.FormatUint(sequence, 10), 0).Err()
}

// GetRelayCursor retrieves the relay cursor for a chain
func (r *RedisPersistence) GetRelayCursor(chain types.ChainName) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, persistence.ErrClosed
	}

	key := r.prefixKey(keyPrefixCursor + chain.String())
	sequence, err := r.client.Get(context.Background(), key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get relay cursor: %w", err)
	}
	return sequence, nil
}

// SaveNodeState persists node operational state
func (r *RedisPersistence) SaveNodeState(state *persistence.NodeState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil NodeState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalNodeState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal NodeState: %w", err)
	}

	return r.client.Set(context.Background(), r.prefixKey(keyPrefixNodeState), data, 0).Err()
}

// LoadNodeState retrieves node operational state
func (r *RedisPersistence) LoadNodeState() (*persistence.NodeState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.prefixKey(keyPrefixNodeState)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load NodeState: %w", err)
	}

	state, err := persistence.UnmarshalNodeState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal NodeState: %w", err)
	}
	return state, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}

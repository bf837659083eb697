package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixEvent       = "event:"
	keyPrefixClaim       = "claim:"
	keyPrefixCursor      = "cursor:"
	keyPrefixNodeState   = "nodestate:main"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a production-ready persistence implementation using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IBridgePersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for durability.
// A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// eventKey sorts lexically in sequence order within a chain
func eventKey(chain types.ChainName, sequence uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", keyPrefixEvent, chain, sequence))
}

func eventPrefix(chain types.ChainName) []byte {
	return []byte(fmt.Sprintf("%s%s:", keyPrefixEvent, chain))
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value log garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// get copies the value at key, returning nil when the key doesn't exist
func (b *BadgerPersistence) get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// SaveEvent archives a ledger event
func (b *BadgerPersistence) SaveEvent(event *types.Event) error {
	if err := persistence.ValidateEvent(event); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal Event: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(eventKey(event.Chain, event.Sequence), data)
	})
}

// LoadEvent retrieves an archived event
func (b *BadgerPersistence) LoadEvent(chain types.ChainName, sequence uint64) (*types.Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(eventKey(chain, sequence))
	if err != nil {
		return nil, fmt.Errorf("failed to load Event: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	event, err := persistence.UnmarshalEvent(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal Event: %w", err)
	}
	return event, nil
}

// ListEvents returns archived events of a chain after a sequence number.
// Keys are zero padded so iteration order is sequence order.
func (b *BadgerPersistence) ListEvents(chain types.ChainName, after uint64) ([]*types.Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	events := make([]*types.Event, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = eventPrefix(chain)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventKey(chain, after+1)); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			event, err := persistence.UnmarshalEvent(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal Event, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			events = append(events, event)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list Events: %w", err)
	}
	return events, nil
}

// ClaimEvent marks an event as being handled. The read and write share one transaction,
// so concurrent claims of the same ID conflict and only one succeeds.
func (b *BadgerPersistence) ClaimEvent(eventID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, persistence.ErrClosed
	}

	key := []byte(keyPrefixClaim + eventID)
	claimed := false

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Unix()))
		if err := txn.Set(key, buf); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if errors.Is(err, badgerdb.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}
	return claimed, nil
}

// ReleaseEventClaim drops a claim
func (b *BadgerPersistence) ReleaseEventClaim(eventID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(keyPrefixClaim + eventID))
	})
}

// IsEventClaimed reports whether an event is claimed
func (b *BadgerPersistence) IsEventClaimed(eventID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, persistence.ErrClosed
	}

	data, err := b.get([]byte(keyPrefixClaim + eventID))
	if err != nil {
		return false, fmt.Errorf("failed to read claim for %s: %w", eventID, err)
	}
	return data != nil, nil
}

// SetRelayCursor stores the relay cursor for a chain
func (b *BadgerPersistence) SetRelayCursor(chain types.ChainName, sequence uint64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, sequence)

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefixCursor+chain.String()), buf)
	})
}

// GetRelayCursor retrieves the relay cursor for a chain
func (b *BadgerPersistence) GetRelayCursor(chain types.ChainName) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, persistence.ErrClosed
	}

	data, err := b.get([]byte(keyPrefixCursor + chain.String()))
	if err != nil {
		return 0, fmt.Errorf("failed to get relay cursor: %w", err)
	}
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid relay cursor data length: %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// SaveNodeState persists node operational state
func (b *BadgerPersistence) SaveNodeState(state *persistence.NodeState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil NodeState")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalNodeState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal NodeState: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefixNodeState), data)
	})
}

// LoadNodeState retrieves node operational state
func (b *BadgerPersistence) LoadNodeState() (*persistence.NodeState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get([]byte(keyPrefixNodeState))
	if err != nil {
		return nil, fmt.Errorf("failed to load NodeState: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	state, err := persistence.UnmarshalNodeState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal NodeState: %w", err)
	}
	return state, nil
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}

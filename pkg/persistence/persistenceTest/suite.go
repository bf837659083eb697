// Package persistenceTest holds the behavioural tests every IBridgePersistence backend must pass.
package persistenceTest

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) persistence.IBridgePersistence

func testEvent(chain types.ChainName, seq uint64) *types.Event {
	return &types.Event{
		Chain:       chain,
		Sequence:    seq,
		Kind:        types.EventKind_Locked,
		Account:     common.HexToAddress("0x00000000000000000000000000000000000000A1"),
		Amount:      big.NewInt(int64(seq * 100)),
		Destination: common.HexToAddress("0x00000000000000000000000000000000000000A2"),
		Timestamp:   1700000000 + int64(seq),
	}
}

func RunSuite(t *testing.T, newStore Factory) {
	t.Run("SaveAndLoadEvent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		ev := testEvent(types.ChainName_MainChain, 1)
		require.NoError(t, store.SaveEvent(ev))

		loaded, err := store.LoadEvent(types.ChainName_MainChain, 1)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, ev.ID(), loaded.ID())
		assert.Equal(t, ev.Kind, loaded.Kind)
		assert.Equal(t, ev.Account, loaded.Account)
		assert.Equal(t, ev.Destination, loaded.Destination)
		assert.Equal(t, 0, ev.Amount.Cmp(loaded.Amount))

		missing, err := store.LoadEvent(types.ChainName_SideChain, 1)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("SaveEvent_Invalid", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		require.Error(t, store.SaveEvent(nil))
		require.Error(t, store.SaveEvent(&types.Event{Chain: types.ChainName_MainChain}))
	})

	t.Run("SaveEvent_Idempotent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		ev := testEvent(types.ChainName_SideChain, 3)
		require.NoError(t, store.SaveEvent(ev))
		require.NoError(t, store.SaveEvent(ev))

		events, err := store.ListEvents(types.ChainName_SideChain, 0)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("ListEvents_SortedAndFiltered", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for _, seq := range []uint64{5, 1, 12, 3, 2} {
			require.NoError(t, store.SaveEvent(testEvent(types.ChainName_MainChain, seq)))
		}
		require.NoError(t, store.SaveEvent(testEvent(types.ChainName_SideChain, 4)))

		events, err := store.ListEvents(types.ChainName_MainChain, 0)
		require.NoError(t, err)
		require.Len(t, events, 5)
		for i, want := range []uint64{1, 2, 3, 5, 12} {
			assert.Equal(t, want, events[i].Sequence)
			assert.Equal(t, types.ChainName_MainChain, events[i].Chain)
		}

		tail, err := store.ListEvents(types.ChainName_MainChain, 3)
		require.NoError(t, err)
		require.Len(t, tail, 2)
		assert.Equal(t, uint64(5), tail[0].Sequence)
		assert.Equal(t, uint64(12), tail[1].Sequence)

		none, err := store.ListEvents(types.ChainName_MainChain, 12)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ClaimEvent_AtMostOnce", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		id := types.EventID(types.ChainName_MainChain, 7)

		claimed, err := store.IsEventClaimed(id)
		require.NoError(t, err)
		assert.False(t, claimed)

		ok, err := store.ClaimEvent(id)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.ClaimEvent(id)
		require.NoError(t, err)
		assert.False(t, ok)

		claimed, err = store.IsEventClaimed(id)
		require.NoError(t, err)
		assert.True(t, claimed)

		require.NoError(t, store.ReleaseEventClaim(id))
		require.NoError(t, store.ReleaseEventClaim(id))

		ok, err = store.ClaimEvent(id)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ClaimEvent_Concurrent", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		const workers = 10
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.ClaimEvent("sidechain:1")
				if err == nil && ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})

	t.Run("RelayCursor", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		cursor, err := store.GetRelayCursor(types.ChainName_MainChain)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)

		require.NoError(t, store.SetRelayCursor(types.ChainName_MainChain, 42))
		require.NoError(t, store.SetRelayCursor(types.ChainName_SideChain, 7))

		cursor, err = store.GetRelayCursor(types.ChainName_MainChain)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), cursor)

		cursor, err = store.GetRelayCursor(types.ChainName_SideChain)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), cursor)
	})

	t.Run("NodeState", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		state, err := store.LoadNodeState()
		require.NoError(t, err)
		assert.Nil(t, state)

		require.Error(t, store.SaveNodeState(nil))

		saved := &persistence.NodeState{
			NodeStartTime:    1700000000,
			AuthorityAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			MainChainLedger:  "0x00000000000000000000000000000000000000B1",
			SideChainLedger:  "0x00000000000000000000000000000000000000B2",
		}
		require.NoError(t, store.SaveNodeState(saved))

		state, err = store.LoadNodeState()
		require.NoError(t, err)
		assert.Equal(t, saved, state)
	})

	t.Run("ClosedStoreRejectsOperations", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		require.Error(t, store.HealthCheck())
		require.Error(t, store.SaveEvent(testEvent(types.ChainName_MainChain, 1)))
		_, err := store.ListEvents(types.ChainName_MainChain, 0)
		require.Error(t, err)
		_, err = store.ClaimEvent(fmt.Sprintf("%s:%d", types.ChainName_MainChain, 1))
		require.Error(t, err)
		_, err = store.GetRelayCursor(types.ChainName_MainChain)
		require.Error(t, err)
	})
}

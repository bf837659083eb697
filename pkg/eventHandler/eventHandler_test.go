package eventHandler

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EventHandler(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	t.Run("delivers events in order", func(t *testing.T) {
		h := NewEventHandler(l)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var mu sync.Mutex
		var received []uint64
		done := make(chan struct{})

		go h.ListenToChannel(ctx, func(ev *types.Event) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, ev.Sequence)
			if len(received) == 5 {
				close(done)
			}
		})

		for seq := uint64(1); seq <= 5; seq++ {
			require.NoError(t, h.HandleEvent(ctx, &types.Event{Chain: types.ChainName_MainChain, Sequence: seq}))
		}

		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []uint64{1, 2, 3, 4, 5}, received)
	})

	t.Run("drops when full without blocking", func(t *testing.T) {
		h := NewEventHandler(l)
		ctx := context.Background()

		for seq := uint64(1); seq <= uint64(cap(h.EventChannel))+10; seq++ {
			require.NoError(t, h.HandleEvent(ctx, &types.Event{Chain: types.ChainName_SideChain, Sequence: seq}))
		}
		assert.Equal(t, cap(h.EventChannel), len(h.EventChannel))
	})

	t.Run("listener exits on cancel", func(t *testing.T) {
		h := NewEventHandler(l)
		ctx, cancel := context.WithCancel(context.Background())
		exited := make(chan struct{})
		go func() {
			h.ListenToChannel(ctx, func(*types.Event) {})
			close(exited)
		}()
		cancel()

		select {
		case <-exited:
		case <-time.After(time.Second):
			t.Fatal("listener did not exit")
		}
	})
}

type fakeSource struct {
	events []*types.Event
}

func (f *fakeSource) Chain() types.ChainName { return types.ChainName_MainChain }

func (f *fakeSource) EventsSince(after uint64) []*types.Event {
	var out []*types.Event
	for _, ev := range f.events {
		if ev.Sequence > after {
			out = append(out, ev)
		}
	}
	return out
}

func Test_ArchiveHandler(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	store := memory.NewMemoryPersistence()
	defer func() { _ = store.Close() }()

	a := NewArchiveHandler(store, l)
	ev := &types.Event{Chain: types.ChainName_MainChain, Sequence: 1, Kind: types.EventKind_Locked, Amount: big.NewInt(5)}
	require.NoError(t, a.HandleEvent(context.Background(), ev))

	source := &fakeSource{events: []*types.Event{
		ev,
		{Chain: types.ChainName_MainChain, Sequence: 2, Kind: types.EventKind_Unlocked, Amount: big.NewInt(1)},
		{Chain: types.ChainName_MainChain, Sequence: 3, Kind: types.EventKind_Locked, Amount: big.NewInt(2)},
	}}
	n, err := a.Backfill(source)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	archived, err := store.ListEvents(types.ChainName_MainChain, 0)
	require.NoError(t, err)
	assert.Len(t, archived, 3)

	require.Error(t, a.HandleEvent(context.Background(), &types.Event{}))
}

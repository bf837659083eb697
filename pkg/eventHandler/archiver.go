package eventHandler

import (
	"context"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"go.uber.org/zap"
)

// ArchiveHandler mirrors committed ledger events into persistence
type ArchiveHandler struct {
	store  persistence.IBridgePersistence
	logger *zap.Logger
}

var _ ledger.IEventHandler = (*ArchiveHandler)(nil)

func NewArchiveHandler(store persistence.IBridgePersistence, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{store: store, logger: logger}
}

func (a *ArchiveHandler) HandleEvent(_ context.Context, ev *types.Event) error {
	if err := a.store.SaveEvent(ev); err != nil {
		a.logger.Sugar().Errorw("Failed to archive event", "event", ev.ID(), "error", err)
		return err
	}
	return nil
}

// Backfill archives every event of source after the highest sequence already archived
func (a *ArchiveHandler) Backfill(source interface {
	Chain() types.ChainName
	EventsSince(after uint64) []*types.Event
}) (int, error) {
	archived, err := a.store.ListEvents(source.Chain(), 0)
	if err != nil {
		return 0, err
	}
	var after uint64
	if len(archived) > 0 {
		after = archived[len(archived)-1].Sequence
	}

	count := 0
	for _, ev := range source.EventsSince(after) {
		if err := a.store.SaveEvent(ev); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

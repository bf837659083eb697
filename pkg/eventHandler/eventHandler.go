package eventHandler

import (
	"context"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"go.uber.org/zap"
)

type IEventHandler interface {
	ledger.IEventHandler
	ListenToChannel(ctx context.Context, handleFunc func(*types.Event))
}

// EventHandler buffers ledger events for a single consumer. Events that arrive while the
// buffer is full are dropped; consumers recover them from the ledger log by sequence number.
type EventHandler struct {
	EventChannel chan *types.Event
	logger       *zap.Logger
}

var _ IEventHandler = (*EventHandler)(nil)

func NewEventHandler(
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		EventChannel: make(chan *types.Event, 100),
		logger:       logger,
	}
}

func (h *EventHandler) ListenToChannel(ctx context.Context, handleFunc func(*types.Event)) {
	for {
		select {
		case ev := <-h.EventChannel:
			h.logger.Sugar().Debugw("EventHandler received event from channel", "event", ev.ID(), "kind", ev.Kind)
			handleFunc(ev)
		case <-ctx.Done():
			h.logger.Sugar().Info("EventHandler channel listener exiting due to context done")
			return
		}
	}
}

func (h *EventHandler) HandleEvent(ctx context.Context, ev *types.Event) error {
	select {
	case h.EventChannel <- ev:
		h.logger.Sugar().Debugw("Event sent to channel", "event", ev.ID())
	case <-ctx.Done():
		h.logger.Sugar().Warnw("Context done before sending event to channel", "event", ev.ID())
	default:
		h.logger.Sugar().Warnw("Event channel is full, dropping event", "event", ev.ID())
	}
	return nil
}

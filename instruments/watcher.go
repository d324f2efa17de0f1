package instruments

import (
	"context"

	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/push"
)

// SetupWatcher observes card-setup completion: it waits for the first
// CardStatusChanged event with a terminal status.
type SetupWatcher struct {
	results chan CardStatusChanged
	off     func()
	log     *zap.Logger
}

// WatchSetup subscribes to hub immediately so no event published after the
// call is missed. Call Wait once, or Stop to give up.
func WatchSetup(hub *push.Hub, log *zap.Logger) *SetupWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &SetupWatcher{results: make(chan CardStatusChanged, 1), log: log}
	w.off = hub.On(push.EventCardStatusChanged, func(_ context.Context, ev push.Event) {
		msg, err := UnmarshalCardStatusChanged(ev.Payload)
		if err != nil {
			w.log.Warn("setup watcher: undecodable event", zap.Error(err))
			return
		}
		if !msg.Status.Terminal() {
			return
		}
		select {
		case w.results <- msg:
		default:
		}
	})
	return w
}

// Wait blocks until a terminal status arrives or ctx is done.
func (w *SetupWatcher) Wait(ctx context.Context) (CardStatusChanged, error) {
	defer w.Stop()
	select {
	case msg := <-w.results:
		return msg, nil
	case <-ctx.Done():
		return CardStatusChanged{}, ctx.Err()
	}
}

// Stop unsubscribes from the hub.
func (w *SetupWatcher) Stop() { w.off() }

package workers

import (
	"context"
	"log/slog"

	"my-chat-backend/contract"
)

// PresenceSnapshotWorker coalesces snapshot requests.
// Requests arriving while a broadcast is running collapse into one more
// broadcast, which reads the registry after the latest transition.
type PresenceSnapshotWorker struct {
	log         *slog.Logger
	broadcaster contract.PresenceBroadcaster
	requests    chan struct{}
}

func NewPresenceSnapshotWorker(log *slog.Logger, broadcaster contract.PresenceBroadcaster) *PresenceSnapshotWorker {
	return &PresenceSnapshotWorker{
		log:         log,
		broadcaster: broadcaster,
		requests:    make(chan struct{}, 1),
	}
}

// RequestSnapshot never blocks.
func (w *PresenceSnapshotWorker) RequestSnapshot() {
	select {
	case w.requests <- struct{}{}:
	default:
	}
}

func (w *PresenceSnapshotWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping presence snapshot worker")
			return nil
		case <-w.requests:
			n := w.broadcaster.BroadcastPresenceSnapshot(ctx)
			w.log.Debug("Presence snapshot broadcast", "connections", n)
		}
	}
}

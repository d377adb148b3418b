package workers

import (
	"context"
	"log/slog"
	"time"

	"my-chat-backend/contract"
)

// QueueReporter is implemented by connections backed by a buffered outbound queue.
type QueueReporter interface {
	QueueUsage() (length, capacity int)
}

type ConnectionSource interface {
	Connections() []contract.Connection
}

// ChannelCapacityWorker samples the outbound queue of every live connection
// and warns about the ones close to backpressure. Reading len and cap of a
// channel never blocks the writers.
type ChannelCapacityWorker struct {
	log       *slog.Logger
	source    ConnectionSource
	interval  time.Duration
	threshold float64
}

func NewChannelCapacityWorker(log *slog.Logger, source ConnectionSource,
	interval time.Duration, threshold float64) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{log: log, source: source, interval: interval, threshold: threshold}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping queue sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

// sample returns the number of connections above the threshold.
func (w *ChannelCapacityWorker) sample() int {
	saturated := 0
	for _, conn := range w.source.Connections() {
		reporter, ok := conn.(QueueReporter)
		if !ok {
			continue
		}
		length, capacity := reporter.QueueUsage()
		if capacity == 0 || float64(length)/float64(capacity) < w.threshold {
			continue
		}
		saturated++
		w.log.Warn("Connection queue close to capacity",
			"user_id", conn.UserID(), "connection_id", conn.ID(), "length", length, "capacity", capacity)
	}
	return saturated
}

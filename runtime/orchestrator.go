// Package runtime tracks live connections and routes real-time events.
// It holds no business rule: services decide what to send, runtime decides
// which connections receive it.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"my-chat-backend/contract"
	"my-chat-backend/domain/event"
	"my-chat-backend/observability"
	"my-chat-backend/runtime/workers"
)

const defaultQueueThreshold = 0.8

type Options struct {
	Shards          int
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration
	StatsInterval   time.Duration
	RestartInterval time.Duration
	// QueueThreshold is the outbound queue fill ratio reported as saturated.
	QueueThreshold  float64
	EchoKinds       []event.Kind
	Now             func() time.Time
}

// Orchestrator owns the real-time core and its background workers.
type Orchestrator struct {
	log        *slog.Logger
	Registry   *Registry
	Channels   *Membership
	Router     *Router
	Tracker    *Tracker
	supervisor *workers.Supervisor
	workers    []contract.Worker
	cancel     context.CancelFunc
	running    sync.WaitGroup
}

func NewOrchestrator(log *slog.Logger, users contract.UserStore, groups contract.GroupStore,
	metrics *observability.Metrics, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.QueueThreshold <= 0 {
		opts.QueueThreshold = defaultQueueThreshold
	}
	registry := NewRegistry(opts.Shards)
	channels := NewMembership(log.With("component", "membership"), groups, registry, opts.StoreTimeout, opts.Shards)
	router := NewRouter(log.With("component", "router"), registry, channels, metrics, opts.DeliveryTimeout, opts.EchoKinds)
	router.now = opts.Now

	snapshots := workers.NewPresenceSnapshotWorker(log.With("component", "presence_snapshot"), router)
	tracker := NewTracker(log.With("component", "presence"), registry, channels, router, users,
		metrics, opts.StoreTimeout, opts.Now).WithSnapshots(snapshots)

	o := &Orchestrator{
		log:        log,
		Registry:   registry,
		Channels:   channels,
		Router:     router,
		Tracker:    tracker,
		supervisor: workers.NewSupervisor(log.With("component", "supervisor"), opts.RestartInterval),
		workers:    []contract.Worker{snapshots},
	}
	if opts.StatsInterval > 0 {
		o.workers = append(o.workers,
			workers.NewStatsWorker(log.With("component", "stats"), registry, channels, opts.StatsInterval),
			workers.NewChannelCapacityWorker(log.With("component", "queue_capacity"), registry, opts.StatsInterval, opts.QueueThreshold))
	}
	return o
}

// Start runs the workers in the background until Stop or ctx cancellation.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.supervisor.Add(o.workers...)
	o.running.Add(1)
	go func() {
		defer o.running.Done()
		o.supervisor.Run(ctx)
	}()
	o.log.Info("Real-time core started", "workers", len(o.workers))
}

// Stop cancels the workers and waits for them.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.supervisor.Stop()
	o.running.Wait()
	o.log.Info("Real-time core stopped")
}

package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/observability"
)

// Router delivers outbound events to live connections.
//
// Delivery is best-effort and at-most-once: every connection of the target
// snapshot gets one attempt, failures are logged and counted, nothing is
// queued or retried, and one failing connection never stops the others.
type Router struct {
	log         *slog.Logger
	registry    *Registry
	channels    *Membership
	metrics     *observability.Metrics
	sendTimeout time.Duration
	echo        map[event.Kind]bool
	now         func() time.Time
}

func NewRouter(log *slog.Logger, registry *Registry, channels *Membership,
	metrics *observability.Metrics, sendTimeout time.Duration, echoKinds []event.Kind) *Router {
	echo := make(map[event.Kind]bool, len(echoKinds))
	for _, k := range echoKinds {
		echo[k] = true
	}
	return &Router{
		log:         log,
		registry:    registry,
		channels:    channels,
		metrics:     metrics,
		sendTimeout: sendTimeout,
		echo:        echo,
		now:         time.Now,
	}
}

// Route dispatches on the event scope.
func (r *Router) Route(ctx context.Context, evt event.Event) int {
	switch evt.Scope.Kind {
	case event.SingleUser:
		return r.RouteToUser(ctx, evt.Scope.UserID, evt)
	case event.SingleGroup:
		return r.RouteToGroup(ctx, evt.Scope.GroupID, evt, nil)
	case event.Everyone:
		return r.Broadcast(ctx, evt)
	default:
		r.log.Warn("Event dropped, unknown scope", "kind", evt.Kind, "scope", evt.Scope.Kind)
		return 0
	}
}

// RouteToUser delivers to every connection of the user.
// An offline user is not an error, the event is dropped.
func (r *Router) RouteToUser(ctx context.Context, userID domain.UserID, evt event.Event) int {
	conns := r.registry.ConnectionsFor(userID)
	if len(conns) == 0 {
		r.log.Debug("Recipient offline, event dropped", "kind", evt.Kind, "user_id", userID)
		return 0
	}
	return r.deliver(ctx, conns, evt)
}

// RouteToGroup delivers to the connections joined to the group channel.
// allow filters recipients by user; nil lets everyone through.
// The origin's own connections are skipped unless its kind echoes.
func (r *Router) RouteToGroup(ctx context.Context, groupID domain.GroupID, evt event.Event,
	allow func(domain.UserID) bool) int {
	targets := r.filter(r.channels.Members(groupID), evt, allow)
	return r.deliver(ctx, targets, evt)
}

// Broadcast delivers to every live connection, origin excluded unless its kind echoes.
func (r *Router) Broadcast(ctx context.Context, evt event.Event) int {
	return r.deliver(ctx, r.filter(r.registry.Connections(), evt, nil), evt)
}

// BroadcastPresenceSnapshot sends the online user list to every connection.
func (r *Router) BroadcastPresenceSnapshot(ctx context.Context) int {
	return r.Broadcast(ctx, event.OnlineUsers(r.registry.OnlineUserIDs(), r.now()))
}

// SendPresenceSnapshot sends the online user list to one connection.
func (r *Router) SendPresenceSnapshot(ctx context.Context, conn contract.Connection) int {
	return r.deliver(ctx, []contract.Connection{conn}, event.OnlineUsers(r.registry.OnlineUserIDs(), r.now()))
}

func (r *Router) filter(conns []contract.Connection, evt event.Event, allow func(domain.UserID) bool) []contract.Connection {
	skipOrigin := evt.Origin != "" && !r.echo[evt.Kind]
	targets := conns[:0:0]
	for _, c := range conns {
		user := c.UserID()
		if skipOrigin && user == evt.Origin {
			continue
		}
		if allow != nil && !allow(user) {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

func (r *Router) deliver(ctx context.Context, conns []contract.Connection, evt event.Event) int {
	if len(conns) == 0 {
		return 0
	}
	start := time.Now()
	delivered := 0
	for _, conn := range conns {
		if err := r.send(ctx, conn, evt); err != nil {
			r.log.Warn("Delivery failed",
				"kind", evt.Kind, "user_id", conn.UserID(), "connection_id", conn.ID(), "error", err)
			continue
		}
		delivered++
	}
	kind := string(evt.Kind)
	r.metrics.Delivered(ctx, kind, delivered)
	r.metrics.Dropped(ctx, kind, len(conns)-delivered)
	r.metrics.ObserveFanout(ctx, kind, time.Since(start))
	return delivered
}

func (r *Router) send(ctx context.Context, conn contract.Connection, evt event.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("send panicked: %v", rec)
		}
	}()
	if r.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.sendTimeout)
		defer cancel()
	}
	return conn.Send(ctx, evt)
}

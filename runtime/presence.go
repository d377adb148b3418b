package runtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/errors"
	"my-chat-backend/observability"
)

// SnapshotRequester asks for a presence snapshot to be broadcast.
type SnapshotRequester interface {
	RequestSnapshot()
}

type immediateSnapshot struct {
	router *Router
}

func (s immediateSnapshot) RequestSnapshot() {
	s.router.BroadcastPresenceSnapshot(context.Background())
}

// Tracker owns the Offline/Online transitions of users.
//
// A user goes Online with its first connection and Offline with its last
// one. Extra devices never trigger a broadcast. Store calls run with a
// timeout and outside any registry lock.
type Tracker struct {
	log       *slog.Logger
	registry  *Registry
	channels  *Membership
	router    *Router
	users     contract.UserStore
	metrics   *observability.Metrics
	snapshots SnapshotRequester
	timeout   time.Duration
	now       func() time.Time
}

func NewTracker(log *slog.Logger, registry *Registry, channels *Membership, router *Router,
	users contract.UserStore, metrics *observability.Metrics, timeout time.Duration, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		log:       log,
		registry:  registry,
		channels:  channels,
		router:    router,
		users:     users,
		metrics:   metrics,
		snapshots: immediateSnapshot{router: router},
		timeout:   timeout,
		now:       now,
	}
}

// WithSnapshots replaces the synchronous snapshot broadcast.
func (t *Tracker) WithSnapshots(requester SnapshotRequester) *Tracker {
	t.snapshots = requester
	return t
}

// Connect registers a new connection and joins its group channels.
// Only a duplicate connection id is an error; store failures degrade.
func (t *Tracker) Connect(ctx context.Context, conn contract.Connection) error {
	userID := conn.UserID()
	log := t.log.With("user_id", userID, "connection_id", conn.ID())

	first, err := t.registry.Register(conn)
	if err != nil {
		log.Warn("Connection rejected", "error", err)
		return err
	}
	t.channels.Prepare(conn)
	if !t.channels.Merge(conn.ID(), t.channels.ChannelsFor(ctx, userID)) {
		log.Debug("Connection closed while joining its channels")
		return nil
	}

	if !first {
		log.Debug("Additional device connected")
		t.router.SendPresenceSnapshot(ctx, conn)
		return nil
	}

	log.Info("User online")
	t.metrics.Transition(ctx, string(domain.Online))
	if user, err := t.lookup(ctx, userID); err != nil {
		log.Warn("User lookup failed, skipping userJoined", "error", err)
	} else {
		t.router.Broadcast(ctx, event.UserJoined(user, t.now()))
	}
	t.snapshots.RequestSnapshot()
	return nil
}

// Disconnect removes the connection. Unknown ids are ignored.
func (t *Tracker) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	userID, last, err := t.registry.Unregister(connID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			t.log.Debug("Disconnect of unknown connection ignored", "connection_id", connID)
			return
		}
		t.log.Error("Unable to unregister connection", "connection_id", connID, "error", err)
		return
	}
	t.channels.Detach(connID)

	log := t.log.With("user_id", userID, "connection_id", connID)
	if !last {
		log.Debug("Device disconnected, user still online")
		return
	}

	lastSeen := t.now()
	log.Info("User offline", "last_seen", lastSeen)
	t.metrics.Transition(ctx, string(domain.Offline))
	if err := t.persistLastSeen(ctx, userID, lastSeen); err != nil {
		log.Warn("Unable to persist last seen", "error", err)
	}
	t.router.Broadcast(ctx, event.UserLastSeen(userID, lastSeen))
	t.snapshots.RequestSnapshot()
}

// Presence derives the state of a user: online from the registry,
// otherwise offline with the stored last seen.
func (t *Tracker) Presence(ctx context.Context, userID domain.UserID) (domain.PresenceState, error) {
	if t.registry.IsOnline(userID) {
		return domain.PresenceState{UserID: userID, Status: domain.Online}, nil
	}
	user, err := t.lookup(ctx, userID)
	if err != nil {
		return domain.PresenceState{}, err
	}
	return domain.PresenceState{UserID: userID, Status: domain.Offline, LastSeen: user.LastSeen}, nil
}

func (t *Tracker) lookup(ctx context.Context, userID domain.UserID) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	user, err := t.users.FindByID(ctx, userID)
	return user, errors.External(err)
}

func (t *Tracker) persistLastSeen(ctx context.Context, userID domain.UserID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return errors.External(t.users.UpdateLastSeen(ctx, userID, at))
}

package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/mocks"

	"github.com/mama165/sdk-go/logs"
	"go.uber.org/mock/gomock"
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fakeConn struct {
	id     domain.ConnectionID
	user   domain.UserID
	mu     sync.Mutex
	events []event.Event
	err    error
	panics bool
}

func newConn(user domain.UserID) *fakeConn {
	return &fakeConn{id: domain.NewConnectionID(), user: user}
}

func (c *fakeConn) ID() domain.ConnectionID { return c.id }
func (c *fakeConn) UserID() domain.UserID   { return c.user }
func (c *fakeConn) Close() error            { return nil }

func (c *fakeConn) Send(_ context.Context, evt event.Event) error {
	if c.panics {
		panic("broken connection")
	}
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *fakeConn) received(kind event.Kind) []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Event
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) lastSnapshot() []string {
	snapshots := c.received(event.OnlineUsersKind)
	if len(snapshots) == 0 {
		return nil
	}
	return snapshots[len(snapshots)-1].Payload.([]string)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type core struct {
	registry *Registry
	channels *Membership
	router   *Router
	tracker  *Tracker
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// newCore wires the runtime with synchronous snapshots and mock stores.
func newCore(t *testing.T, users *mocks.MockUserStore, groups *mocks.MockGroupStore, echo ...event.Kind) core {
	t.Helper()
	log := testLogger()
	registry := NewRegistry(8)
	channels := NewMembership(log, groups, registry, 100*time.Millisecond, 8)
	router := NewRouter(log, registry, channels, nil, 100*time.Millisecond, echo)
	router.now = func() time.Time { return testNow }
	tracker := NewTracker(log, registry, channels, router, users, nil, 100*time.Millisecond,
		func() time.Time { return testNow })
	return core{registry: registry, channels: channels, router: router, tracker: tracker}
}

func noGroups(ctrl *gomock.Controller) *mocks.MockGroupStore {
	groups := mocks.NewMockGroupStore(ctrl)
	groups.EXPECT().FindByMember(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	return groups
}

package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"my-chat-backend/blocking"
	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/moderation"
	"my-chat-backend/repositories"
	"my-chat-backend/runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingConn struct {
	id     domain.ConnectionID
	user   domain.UserID
	mu     sync.Mutex
	events []event.Event
}

func (c *recordingConn) ID() domain.ConnectionID { return c.id }
func (c *recordingConn) UserID() domain.UserID   { return c.user }
func (c *recordingConn) Close() error            { return nil }

func (c *recordingConn) Send(_ context.Context, evt event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *recordingConn) received(kind event.Kind) []event.Event {
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

// fixture wires real stores on an in-memory Badger with the real-time core.
type fixture struct {
	log      *slog.Logger
	users    *repositories.UserRepository
	groups   *repositories.GroupRepository
	messages *repositories.MessageRepository
	core     *runtime.Orchestrator
	guard    *blocking.Guard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	users := repositories.NewUserRepository(db, log, nil)
	groups := repositories.NewGroupRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	core := runtime.NewOrchestrator(log, users, groups, nil, runtime.Options{
		StoreTimeout:    time.Second,
		DeliveryTimeout: time.Second,
		Now:             func() time.Time { return testNow },
	})
	return &fixture{
		log:      log,
		users:    users,
		groups:   groups,
		messages: messages,
		core:     core,
		guard:    blocking.NewGuard(log, users, time.Second),
	}
}

func (f *fixture) chat(t *testing.T, uploader contract.MediaUploader, policy BlockedSendPolicy, words ...string) *ChatService {
	t.Helper()
	moderator, err := moderation.NewModerator(words, '*', f.log)
	require.NoError(t, err)
	s := NewChatService(f.log, f.users, f.groups, f.messages, uploader, f.guard,
		f.core.Router, moderator, time.Second, policy)
	s.now = func() time.Time { return testNow }
	return s
}

func (f *fixture) groupService() *GroupService {
	s := NewGroupService(f.log, f.users, f.groups, f.guard, f.core.Channels, f.core.Router, 4)
	s.now = func() time.Time { return testNow }
	return s
}

func (f *fixture) user(t *testing.T, name string) domain.UserID {
	t.Helper()
	u, err := f.users.Create(context.Background(), domain.User{FullName: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) connect(t *testing.T, user domain.UserID) *recordingConn {
	t.Helper()
	conn := &recordingConn{id: domain.NewConnectionID(), user: user}
	require.NoError(t, f.core.Tracker.Connect(context.Background(), conn))
	return conn
}

func (f *fixture) block(t *testing.T, who, target domain.UserID) {
	t.Helper()
	require.NoError(t, f.users.AddBlock(context.Background(), who, target))
}

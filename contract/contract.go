//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker
// for supervision logs.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live real-time session of a user.
// Send must not block: a full or closed connection returns an error.
type Connection interface {
	ID() domain.ConnectionID
	UserID() domain.UserID
	Send(ctx context.Context, evt event.Event) error
	Close() error
}

type UserStore interface {
	FindByID(ctx context.Context, id domain.UserID) (domain.User, error)
	FindMany(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	UpdateLastSeen(ctx context.Context, id domain.UserID, at time.Time) error
	GetBlockList(ctx context.Context, id domain.UserID) (domain.BlockList, error)
	AddBlock(ctx context.Context, id, target domain.UserID) error
	RemoveBlock(ctx context.Context, id, target domain.UserID) error
}

type GroupStore interface {
	Create(ctx context.Context, name string, members []domain.UserID, creator domain.UserID) (domain.Group, error)
	FindByID(ctx context.Context, id domain.GroupID) (domain.Group, error)
	FindByMember(ctx context.Context, userID domain.UserID) ([]domain.Group, error)
	AddMembers(ctx context.Context, groupID domain.GroupID, userIDs []domain.UserID) (domain.Group, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg domain.Message) (domain.Message, error)
	FindConversation(ctx context.Context, userA, userB domain.UserID) ([]domain.Message, error)
	FindGroupMessages(ctx context.Context, groupID domain.GroupID) ([]domain.Message, error)
	MarkRead(ctx context.Context, senderID, receiverID domain.UserID, at time.Time) (int, error)
	UnreadCountsByPeer(ctx context.Context, userID domain.UserID) (map[domain.UserID]int, error)
}

// MediaUploader stores raw image bytes and returns a public URL.
type MediaUploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

type PresenceBroadcaster interface {
	BroadcastPresenceSnapshot(ctx context.Context) int
}

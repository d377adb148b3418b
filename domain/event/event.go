package event

import (
	"encoding/json"
	"time"

	"my-chat-backend/domain"
)

// Kind is the event name clients subscribe to.
type Kind string

const (
	UserJoinedKind      Kind = "userJoined"
	UserLastSeenKind    Kind = "userLastSeen"
	OnlineUsersKind     Kind = "getOnlineUsers"
	UserTypingKind      Kind = "userTyping"
	UserStopTypingKind  Kind = "userStopTyping"
	NewMessageKind      Kind = "newMessage"
	GroupCreatedKind    Kind = "groupCreated"
	GroupTypingKind     Kind = "groupTyping"
	GroupStopTypingKind Kind = "groupStopTyping"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case UserJoinedKind, UserLastSeenKind, OnlineUsersKind, UserTypingKind, UserStopTypingKind,
		NewMessageKind, GroupCreatedKind, GroupTypingKind, GroupStopTypingKind:
		return k, true
	}
	return "", false
}

type ScopeKind int

const (
	SingleUser ScopeKind = iota
	SingleGroup
	Everyone
)

type Scope struct {
	Kind    ScopeKind
	UserID  domain.UserID
	GroupID domain.GroupID
}

func ToUser(id domain.UserID) Scope   { return Scope{Kind: SingleUser, UserID: id} }
func ToGroup(id domain.GroupID) Scope { return Scope{Kind: SingleGroup, GroupID: id} }
func ToAll() Scope                    { return Scope{Kind: Everyone} }

// Event is one outbound real-time notification.
// Origin is the user that caused it, if any.
type Event struct {
	Kind    Kind
	Scope   Scope
	Origin  domain.UserID
	Payload any
	At      time.Time
}

// To returns a copy of the event retargeted to another scope.
func (e Event) To(scope Scope) Event {
	e.Scope = scope
	return e
}

// Frame is the envelope written on the wire.
type Frame struct {
	Event Kind `json:"event"`
	Data  any  `json:"data"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(Frame{Event: e.Kind, Data: e.Payload})
}

func UserJoined(u domain.User, at time.Time) Event {
	return Event{Kind: UserJoinedKind, Scope: ToAll(), Origin: u.ID, Payload: NewUserView(u), At: at}
}

func UserLastSeen(id domain.UserID, lastSeen time.Time) Event {
	return Event{
		Kind:    UserLastSeenKind,
		Scope:   ToAll(),
		Origin:  id,
		Payload: LastSeenPayload{UserID: string(id), LastSeen: lastSeen},
		At:      lastSeen,
	}
}

func OnlineUsers(ids []domain.UserID, at time.Time) Event {
	payload := make([]string, len(ids))
	for i, id := range ids {
		payload[i] = string(id)
	}
	return Event{Kind: OnlineUsersKind, Scope: ToAll(), Payload: payload, At: at}
}

func UserTyping(sender, receiver domain.UserID, at time.Time) Event {
	return Event{
		Kind:    UserTypingKind,
		Scope:   ToUser(receiver),
		Origin:  sender,
		Payload: TypingPayload{SenderID: string(sender)},
		At:      at,
	}
}

func UserStopTyping(sender, receiver domain.UserID, at time.Time) Event {
	evt := UserTyping(sender, receiver, at)
	evt.Kind = UserStopTypingKind
	return evt
}

// NewMessage is scoped to the receiver or to the group of the message.
func NewMessage(m domain.Message) Event {
	scope := ToUser(m.ReceiverID)
	if m.IsGroup() {
		scope = ToGroup(m.GroupID)
	}
	return Event{Kind: NewMessageKind, Scope: scope, Origin: m.SenderID, Payload: NewMessageView(m), At: m.CreatedAt}
}

// GroupCreated carries the group with the member profiles that could be
// resolved. It has no scope until retargeted with To.
func GroupCreated(g domain.Group, profiles []domain.User, at time.Time) Event {
	return Event{Kind: GroupCreatedKind, Origin: g.CreatedBy, Payload: NewGroupView(g, profiles), At: at}
}

func GroupTyping(groupID domain.GroupID, u domain.User, at time.Time) Event {
	return Event{
		Kind:    GroupTypingKind,
		Scope:   ToGroup(groupID),
		Origin:  u.ID,
		Payload: GroupTypingPayload{GroupID: string(groupID), User: NewUserView(u)},
		At:      at,
	}
}

func GroupStopTyping(groupID domain.GroupID, sender domain.UserID, at time.Time) Event {
	return Event{
		Kind:    GroupStopTypingKind,
		Scope:   ToGroup(groupID),
		Origin:  sender,
		Payload: GroupStopTypingPayload{GroupID: string(groupID), SenderID: string(sender)},
		At:      at,
	}
}

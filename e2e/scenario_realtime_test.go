package e2e

import (
	"encoding/json"
	"net/http"
	"slices"
	"testing"

	"my-chat-backend/domain/event"

	"github.com/stretchr/testify/suite"
)

type RealtimeSuite struct {
	BaseSuite
}

func TestRealtimeSuite(t *testing.T) {
	suite.Run(t, new(RealtimeSuite))
}

func hasOnline(id string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var ids []string
		return json.Unmarshal(raw, &ids) == nil && slices.Contains(ids, id)
	}
}

func withoutOnline(id string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var ids []string
		return json.Unmarshal(raw, &ids) == nil && !slices.Contains(ids, id)
	}
}

func fromSender(id string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var m event.MessageView
		return json.Unmarshal(raw, &m) == nil && m.SenderID == id
	}
}

func (s *RealtimeSuite) TestPresenceLifecycle() {
	u1, u2 := s.SignUp("Ursula"), s.SignUp("Victor")

	s.Step("U1 connects and sees itself online")
	sock1 := s.Connect(u1)
	sock1.Await(event.OnlineUsersKind, nil, hasOnline(string(u1.User.ID)))

	s.Step("U2 connects, U1 is told about the join")
	sock2 := s.Connect(u2)
	var joined event.UserView
	sock1.Await(event.UserJoinedKind, &joined, nil)
	s.Equal(string(u2.User.ID), joined.ID)
	sock1.Await(event.OnlineUsersKind, nil, hasOnline(string(u2.User.ID)))

	var state map[string]any
	s.Equal(http.StatusOK, s.Call(u1, http.MethodGet, "/api/users/"+string(u2.User.ID)+"/presence", nil, &state))
	s.Equal("online", state["status"])

	s.Step("U2 leaves, U1 gets the last seen and a fresh snapshot")
	sock2.Close()
	var lastSeen event.LastSeenPayload
	sock1.Await(event.UserLastSeenKind, &lastSeen, nil)
	s.Equal(string(u2.User.ID), lastSeen.UserID)
	s.False(lastSeen.LastSeen.IsZero())
	sock1.Await(event.OnlineUsersKind, nil, withoutOnline(string(u2.User.ID)))

	s.Equal(http.StatusOK, s.Call(u1, http.MethodGet, "/api/users/"+string(u2.User.ID)+"/presence", nil, &state))
	s.Equal("offline", state["status"])
	s.NotEmpty(state["lastSeen"])
}

func (s *RealtimeSuite) TestDirectMessageAndTyping() {
	alice, bob := s.SignUp("Alice"), s.SignUp("Bob")
	bobSock := s.Connect(bob)
	aliceSock := s.Connect(alice)
	bobSock.Await(event.OnlineUsersKind, nil, hasOnline(string(alice.User.ID)))

	s.Step("Alice types to Bob")
	aliceSock.Emit("typing", map[string]string{"receiverId": string(bob.User.ID)})
	var typing event.TypingPayload
	bobSock.Await(event.UserTypingKind, &typing, nil)
	s.Equal(string(alice.User.ID), typing.SenderID)

	s.Step("Alice sends Bob a message")
	var sent event.MessageView
	s.Equal(http.StatusCreated, s.Call(alice, http.MethodPost, "/api/messages/send/"+string(bob.User.ID),
		map[string]string{"text": "Hello Bob"}, &sent))
	var received event.MessageView
	bobSock.Await(event.NewMessageKind, &received, nil)
	s.Equal(sent.ID, received.ID)
	s.Equal("Hello Bob", received.Text)
}

func (s *RealtimeSuite) TestBlockedSenderIsNeverDelivered() {
	alice, bob, carol := s.SignUp("Alice"), s.SignUp("Bob"), s.SignUp("Carol")
	bobSock := s.Connect(bob)

	s.Step("Bob blocks Alice")
	s.Equal(http.StatusNoContent, s.Call(bob, http.MethodPost, "/api/auth/block/"+string(alice.User.ID), nil, nil))

	s.Step("Alice's message is stored but not pushed")
	s.Equal(http.StatusCreated, s.Call(alice, http.MethodPost, "/api/messages/send/"+string(bob.User.ID),
		map[string]string{"text": "are you there?"}, nil))
	s.Equal(http.StatusCreated, s.Call(carol, http.MethodPost, "/api/messages/send/"+string(bob.User.ID),
		map[string]string{"text": "hi from Carol"}, nil))

	var first event.MessageView
	bobSock.Await(event.NewMessageKind, &first, nil)
	s.Equal(string(carol.User.ID), first.SenderID)

	s.Step("A group with the blocked pair is refused")
	s.Equal(http.StatusBadRequest, s.Call(carol, http.MethodPost, "/api/groups",
		map[string]any{"name": "Trio", "members": []string{string(alice.User.ID), string(bob.User.ID)}}, nil))
}

func (s *RealtimeSuite) TestGroupFanout() {
	alice, bob, carol := s.SignUp("Alice"), s.SignUp("Bob"), s.SignUp("Carol")
	aliceSock, bobSock := s.Connect(alice), s.Connect(bob)

	s.Step("Alice creates a group with Bob and Carol")
	var group event.GroupView
	s.Equal(http.StatusCreated, s.Call(alice, http.MethodPost, "/api/groups",
		map[string]any{"name": "Trio", "members": []string{string(bob.User.ID), string(carol.User.ID)}}, &group))
	var announced event.GroupView
	bobSock.Await(event.GroupCreatedKind, &announced, nil)
	s.Equal(group.ID, announced.ID)

	s.Step("Carol connects later and is attached to the group channel")
	carolSock := s.Connect(carol)
	aliceSock.Await(event.OnlineUsersKind, nil, hasOnline(string(carol.User.ID)))

	s.Step("Alice types in the group")
	aliceSock.Emit("groupTyping", map[string]string{"groupId": group.ID})
	var typing event.GroupTypingPayload
	carolSock.Await(event.GroupTypingKind, &typing, nil)
	s.Equal(string(alice.User.ID), typing.User.ID)
	s.Equal("Alice", typing.User.FullName)

	s.Step("Bob posts, Alice and Carol receive it")
	var sent event.MessageView
	s.Equal(http.StatusCreated, s.Call(bob, http.MethodPost, "/api/groups/"+group.ID+"/send",
		map[string]string{"text": "Hi all"}, &sent))
	var got event.MessageView
	aliceSock.Await(event.NewMessageKind, &got, fromSender(string(bob.User.ID)))
	s.Equal(sent.ID, got.ID)
	carolSock.Await(event.NewMessageKind, &got, fromSender(string(bob.User.ID)))
	s.Equal(group.ID, got.GroupID)
}

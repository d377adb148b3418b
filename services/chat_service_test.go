package services

import (
	"context"
	"fmt"
	"testing"

	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/errors"
	"my-chat-backend/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChatService_SendDirect(t *testing.T) {
	t.Run("delivers to every device of the receiver only", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		aliceConn := f.connect(t, alice)
		bobPhone, bobLaptop := f.connect(t, bob), f.connect(t, bob)
		svc := f.chat(t, nil, SuppressBlockedSend)

		msg, err := svc.SendDirect(ctx, domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Text: "hello"})

		req.NoError(err)
		req.Equal("hello", msg.Text)
		req.Len(bobPhone.received(event.NewMessageKind), 1)
		req.Len(bobLaptop.received(event.NewMessageKind), 1)
		req.Empty(aliceConn.received(event.NewMessageKind))
	})

	t.Run("a blocked pair stores the message without delivering it", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		bobConn := f.connect(t, bob)
		f.block(t, alice, bob)
		svc := f.chat(t, nil, SuppressBlockedSend)

		// When alice writes to bob although she blocked him
		_, err := svc.SendDirect(ctx, domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Text: "hi"})

		// Then the message exists but bob never sees it live
		req.NoError(err)
		req.Empty(bobConn.received(event.NewMessageKind))
		stored, err := f.messages.FindConversation(ctx, alice, bob)
		req.NoError(err)
		req.Len(stored, 1)
	})

	t.Run("a blocked pair is refused under the reject policy", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		f.block(t, bob, alice)
		svc := f.chat(t, nil, RejectBlockedSend)

		_, err := svc.SendDirect(ctx, domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Text: "hi"})

		req.ErrorIs(err, errors.ErrMessagingBlocked)
		stored, err := f.messages.FindConversation(ctx, alice, bob)
		req.NoError(err)
		req.Empty(stored)
	})

	t.Run("rejects empty messages and unknown receivers", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		alice := f.user(t, "alice")
		svc := f.chat(t, nil, SuppressBlockedSend)

		_, err := svc.SendDirect(ctx, domain.SendDirectCommand{SenderID: alice, ReceiverID: alice, Text: "  "})
		req.ErrorIs(err, errors.ErrEmptyMessage)

		_, err = svc.SendDirect(ctx, domain.SendDirectCommand{SenderID: alice, ReceiverID: "ghost", Text: "hi"})
		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("censors forbidden words", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		svc := f.chat(t, nil, SuppressBlockedSend, "badword")

		msg, err := svc.SendDirect(context.Background(), domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Text: "what a badword"})

		req.NoError(err)
		req.Equal("what a *******", msg.Text)
	})
}

func TestChatService_Upload(t *testing.T) {
	image := []byte("\x89PNG\r\n\x1a\n")

	t.Run("stores the image url", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		uploader := mocks.NewMockMediaUploader(ctrl)
		uploader.EXPECT().Upload(gomock.Any(), image).Return("http://media/a.png", nil)
		svc := f.chat(t, uploader, SuppressBlockedSend)

		msg, err := svc.SendDirect(context.Background(), domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Image: image})

		req.NoError(err)
		req.Equal("http://media/a.png", msg.ImageURL)
	})

	t.Run("falls back to text when the uploader is down", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		uploader := mocks.NewMockMediaUploader(ctrl)
		uploader.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("connection refused")).Times(2)
		svc := f.chat(t, uploader, SuppressBlockedSend)

		msg, err := svc.SendDirect(context.Background(), domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Text: "look", Image: image})
		req.NoError(err)
		req.Equal("look", msg.Text)
		req.Empty(msg.ImageURL)

		// Without text there is nothing left to send
		_, err = svc.SendDirect(context.Background(), domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Image: image})
		req.ErrorIs(err, errors.ErrUploadFailed)
	})

	t.Run("an invalid image is rejected even with text", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		uploader := mocks.NewMockMediaUploader(ctrl)
		uploader.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("", errors.ErrUnsupportedMedia)
		svc := f.chat(t, uploader, SuppressBlockedSend)

		_, err := svc.SendDirect(context.Background(), domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Text: "look", Image: []byte("text")})

		req.ErrorIs(err, errors.ErrUnsupportedMedia)
	})
}

func TestChatService_SendGroup(t *testing.T) {
	t.Run("fans out once to each other member", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
		group, err := f.groupService().Create(ctx, domain.CreateGroupCommand{CreatorID: a, Name: "team", MemberIDs: []domain.UserID{b, c}})
		req.NoError(err)
		connA, connB, connC := f.connect(t, a), f.connect(t, b), f.connect(t, c)
		svc := f.chat(t, nil, SuppressBlockedSend)

		_, err = svc.SendGroup(ctx, domain.SendGroupCommand{SenderID: a, GroupID: group.ID, Text: "hello team"})

		req.NoError(err)
		req.Len(connB.received(event.NewMessageKind), 1)
		req.Len(connC.received(event.NewMessageKind), 1)
		req.Empty(connA.received(event.NewMessageKind))
	})

	t.Run("a block set after creation only removes that member", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
		group, err := f.groupService().Create(ctx, domain.CreateGroupCommand{CreatorID: a, Name: "team", MemberIDs: []domain.UserID{b, c}})
		req.NoError(err)
		connB, connC := f.connect(t, b), f.connect(t, c)
		f.block(t, c, a)
		svc := f.chat(t, nil, SuppressBlockedSend)

		_, err = svc.SendGroup(ctx, domain.SendGroupCommand{SenderID: a, GroupID: group.ID, Text: "hello"})

		req.NoError(err)
		req.Len(connB.received(event.NewMessageKind), 1)
		req.Empty(connC.received(event.NewMessageKind))
	})

	t.Run("non members cannot post or read", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		a, b, outsider := f.user(t, "a"), f.user(t, "b"), f.user(t, "outsider")
		group, err := f.groupService().Create(ctx, domain.CreateGroupCommand{CreatorID: a, Name: "team", MemberIDs: []domain.UserID{b}})
		req.NoError(err)
		svc := f.chat(t, nil, SuppressBlockedSend)

		_, err = svc.SendGroup(ctx, domain.SendGroupCommand{SenderID: outsider, GroupID: group.ID, Text: "hi"})
		req.ErrorIs(err, errors.ErrNotGroupMember)

		_, err = svc.GroupMessages(ctx, outsider, group.ID)
		req.ErrorIs(err, errors.ErrNotGroupMember)

		_, err = svc.SendGroup(ctx, domain.SendGroupCommand{SenderID: a, GroupID: "missing", Text: "hi"})
		req.ErrorIs(err, errors.ErrGroupNotFound)
	})
}

func TestChatService_Conversation_MarksRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	svc := f.chat(t, nil, SuppressBlockedSend)

	// Given alice wrote twice to bob
	for _, text := range []string{"one", "two"} {
		_, err := svc.SendDirect(ctx, domain.SendDirectCommand{SenderID: alice, ReceiverID: bob, Text: text})
		req.NoError(err)
	}
	counts, err := svc.UnreadCounts(ctx, bob)
	req.NoError(err)
	req.Equal(map[domain.UserID]int{alice: 2}, counts)

	// When bob opens the conversation
	messages, err := svc.Conversation(ctx, bob, alice)

	// Then the history is already marked read
	req.NoError(err)
	req.Len(messages, 2)
	for _, m := range messages {
		req.True(m.Read)
	}
	counts, err = svc.UnreadCounts(ctx, bob)
	req.NoError(err)
	req.Empty(counts)
}

func TestChatService_Typing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	connB, connC := f.connect(t, b), f.connect(t, c)
	f.block(t, c, a)
	svc := f.chat(t, nil, SuppressBlockedSend)

	req.NoError(svc.Typing(ctx, a, b, true))
	req.NoError(svc.Typing(ctx, a, b, false))
	req.NoError(svc.Typing(ctx, a, c, true))

	req.Len(connB.received(event.UserTypingKind), 1)
	req.Len(connB.received(event.UserStopTypingKind), 1)
	req.Empty(connC.received(event.UserTypingKind))
}

func TestChatService_GroupTyping(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	group, err := f.groupService().Create(ctx, domain.CreateGroupCommand{CreatorID: a, Name: "team", MemberIDs: []domain.UserID{b}})
	req.NoError(err)
	connA, connB := f.connect(t, a), f.connect(t, b)
	svc := f.chat(t, nil, SuppressBlockedSend)

	req.NoError(svc.GroupTyping(ctx, a, group.ID, true))
	req.NoError(svc.GroupTyping(ctx, a, group.ID, false))

	typing := connB.received(event.GroupTypingKind)
	req.Len(typing, 1)
	req.Equal(string(a), typing[0].Payload.(event.GroupTypingPayload).User.ID)
	req.Len(connB.received(event.GroupStopTypingKind), 1)
	req.Empty(connA.received(event.GroupTypingKind))
}

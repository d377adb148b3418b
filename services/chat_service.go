package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"my-chat-backend/blocking"
	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/errors"
	"my-chat-backend/moderation"
	"my-chat-backend/runtime"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

// BlockedSendPolicy decides what happens to a direct message between
// users with a block in either direction.
type BlockedSendPolicy string

const (
	// SuppressBlockedSend stores the message but never delivers it live.
	SuppressBlockedSend BlockedSendPolicy = "suppress"
	// RejectBlockedSend refuses the message with ErrMessagingBlocked.
	RejectBlockedSend BlockedSendPolicy = "reject"
)

type IChatService interface {
	SendDirect(ctx context.Context, cmd domain.SendDirectCommand) (domain.Message, error)
	SendGroup(ctx context.Context, cmd domain.SendGroupCommand) (domain.Message, error)
	Conversation(ctx context.Context, me, peer domain.UserID) ([]domain.Message, error)
	GroupMessages(ctx context.Context, me domain.UserID, groupID domain.GroupID) ([]domain.Message, error)
	UnreadCounts(ctx context.Context, me domain.UserID) (map[domain.UserID]int, error)
	Typing(ctx context.Context, sender, receiver domain.UserID, typing bool) error
	GroupTyping(ctx context.Context, sender domain.UserID, groupID domain.GroupID, typing bool) error
}

type ChatService struct {
	log           *slog.Logger
	users         contract.UserStore
	groups        contract.GroupStore
	messages      contract.MessageStore
	uploader      contract.MediaUploader
	guard         *blocking.Guard
	router        *runtime.Router
	moderator     *moderation.Moderator
	uploadTimeout time.Duration
	policy        BlockedSendPolicy
	now           func() time.Time
}

func NewChatService(log *slog.Logger, users contract.UserStore, groups contract.GroupStore,
	messages contract.MessageStore, uploader contract.MediaUploader, guard *blocking.Guard,
	router *runtime.Router, moderator *moderation.Moderator,
	uploadTimeout time.Duration, policy BlockedSendPolicy) *ChatService {
	return &ChatService{
		log:           log,
		users:         users,
		groups:        groups,
		messages:      messages,
		uploader:      uploader,
		guard:         guard,
		router:        router,
		moderator:     moderator,
		uploadTimeout: uploadTimeout,
		policy:        policy,
		now:           time.Now,
	}
}

// SendDirect stores a message to one user and pushes it to the receiver's
// connections unless a block exists between the two.
func (s *ChatService) SendDirect(ctx context.Context, cmd domain.SendDirectCommand) (domain.Message, error) {
	if isEmpty(cmd.Text, cmd.Image) {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if _, err := s.users.FindByID(ctx, cmd.ReceiverID); err != nil {
		return domain.Message{}, errors.External(err)
	}

	allowed, err := s.guard.CanDeliver(ctx, cmd.SenderID, cmd.ReceiverID)
	if err != nil {
		return domain.Message{}, err
	}
	if !allowed && s.policy == RejectBlockedSend {
		return domain.Message{}, errors.ErrMessagingBlocked
	}

	msg, err := s.compose(ctx, cmd.SenderID, cmd.Text, cmd.Image)
	if err != nil {
		return domain.Message{}, err
	}
	msg.ReceiverID = cmd.ReceiverID

	stored, err := s.messages.Create(ctx, msg)
	if err != nil {
		return domain.Message{}, errors.External(err)
	}

	if !allowed {
		s.log.Debug("Direct message stored without delivery, users blocked",
			"sender_id", cmd.SenderID, "receiver_id", cmd.ReceiverID)
		return stored, nil
	}
	s.router.Route(ctx, event.NewMessage(stored))
	return stored, nil
}

// SendGroup stores a group message and fans it out to the members' live
// connections, skipping the sender and any member with a block involving
// the sender.
func (s *ChatService) SendGroup(ctx context.Context, cmd domain.SendGroupCommand) (domain.Message, error) {
	if isEmpty(cmd.Text, cmd.Image) {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	group, err := s.memberGroup(ctx, cmd.SenderID, cmd.GroupID)
	if err != nil {
		return domain.Message{}, err
	}

	msg, err := s.compose(ctx, cmd.SenderID, cmd.Text, cmd.Image)
	if err != nil {
		return domain.Message{}, err
	}
	msg.GroupID = group.ID

	stored, err := s.messages.Create(ctx, msg)
	if err != nil {
		return domain.Message{}, errors.External(err)
	}

	if err := s.fanOut(ctx, group, cmd.SenderID, event.NewMessage(stored)); err != nil {
		s.log.Warn("Group message stored but not delivered", "group_id", group.ID, "error", err)
	}
	return stored, nil
}

// Conversation marks the peer's messages to me as read, then returns the
// whole exchange oldest first.
func (s *ChatService) Conversation(ctx context.Context, me, peer domain.UserID) ([]domain.Message, error) {
	changed, err := s.messages.MarkRead(ctx, peer, me, s.now().UTC())
	if err != nil {
		return nil, errors.External(err)
	}
	if changed > 0 {
		s.log.Debug("Messages marked as read", "user_id", me, "peer_id", peer, "count", changed)
	}
	messages, err := s.messages.FindConversation(ctx, me, peer)
	return messages, errors.External(err)
}

func (s *ChatService) GroupMessages(ctx context.Context, me domain.UserID, groupID domain.GroupID) ([]domain.Message, error) {
	if _, err := s.memberGroup(ctx, me, groupID); err != nil {
		return nil, err
	}
	messages, err := s.messages.FindGroupMessages(ctx, groupID)
	return messages, errors.External(err)
}

func (s *ChatService) UnreadCounts(ctx context.Context, me domain.UserID) (map[domain.UserID]int, error) {
	counts, err := s.messages.UnreadCountsByPeer(ctx, me)
	return counts, errors.External(err)
}

// Typing relays a typing indicator to the receiver. Blocked pairs are
// silently ignored.
func (s *ChatService) Typing(ctx context.Context, sender, receiver domain.UserID, typing bool) error {
	allowed, err := s.guard.CanDeliver(ctx, sender, receiver)
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}
	evt := event.UserTyping(sender, receiver, s.now())
	if !typing {
		evt = event.UserStopTyping(sender, receiver, s.now())
	}
	s.router.Route(ctx, evt)
	return nil
}

// GroupTyping relays a typing indicator to the other members of a group.
// The sender must be a member; the profile shown is the sender's own.
func (s *ChatService) GroupTyping(ctx context.Context, sender domain.UserID, groupID domain.GroupID, typing bool) error {
	group, err := s.memberGroup(ctx, sender, groupID)
	if err != nil {
		return err
	}
	if !typing {
		return s.fanOut(ctx, group, sender, event.GroupStopTyping(groupID, sender, s.now()))
	}
	user, err := s.users.FindByID(ctx, sender)
	if err != nil {
		return errors.External(err)
	}
	return s.fanOut(ctx, group, sender, event.GroupTyping(groupID, user, s.now()))
}

func (s *ChatService) fanOut(ctx context.Context, group domain.Group, sender domain.UserID, evt event.Event) error {
	recipients, err := s.guard.FilterGroupRecipients(ctx, sender, group.Members)
	if err != nil {
		return err
	}
	allowed := lo.SliceToMap(recipients, func(id domain.UserID) (domain.UserID, bool) {
		return id, true
	})
	s.router.RouteToGroup(ctx, group.ID, evt, func(id domain.UserID) bool {
		return allowed[id]
	})
	return nil
}

func (s *ChatService) memberGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (domain.Group, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return domain.Group{}, errors.External(err)
	}
	if !group.HasMember(userID) {
		return domain.Group{}, errors.ErrNotGroupMember
	}
	return group, nil
}

// compose builds the message body: censored text, detected language and
// the uploaded image. An unavailable uploader falls back to text when there
// is some; an invalid image is always rejected.
func (s *ChatService) compose(ctx context.Context, sender domain.UserID, text string, image []byte) (domain.Message, error) {
	msg := domain.Message{SenderID: sender, CreatedAt: s.now().UTC()}

	if text = strings.TrimSpace(text); text != "" {
		censored, found := s.moderator.Censor(text)
		if len(found) > 0 {
			s.log.Info("Message censored", "sender_id", sender, "words", found)
		}
		msg.Text = censored
		if info := whatlanggo.Detect(text); info.IsReliable() {
			msg.Lang = info.Lang.Iso6391()
		}
	}

	if len(image) == 0 {
		return msg, nil
	}
	url, err := s.upload(ctx, image)
	switch {
	case err == nil:
		msg.ImageURL = url
	case msg.Text != "" && stderrors.Is(err, errors.ErrUploadFailed):
		s.log.Warn("Image upload failed, sending text only", "sender_id", sender, "error", err)
	default:
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *ChatService) upload(ctx context.Context, image []byte) (string, error) {
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}
	url, err := s.uploader.Upload(ctx, image)
	if err == nil {
		return url, nil
	}
	if stderrors.Is(err, errors.ErrInvalidArgument) {
		return "", err
	}
	return "", fmt.Errorf("%w: %v", errors.ErrUploadFailed, err)
}

func isEmpty(text string, image []byte) bool {
	return strings.TrimSpace(text) == "" && len(image) == 0
}

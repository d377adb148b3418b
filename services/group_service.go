package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"my-chat-backend/blocking"
	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/errors"
	"my-chat-backend/runtime"

	"github.com/cespare/xxhash/v2"
)

const groupLockShards = 32

type IGroupService interface {
	Create(ctx context.Context, cmd domain.CreateGroupCommand) (domain.Group, error)
	AddMembers(ctx context.Context, cmd domain.AddMembersCommand) (domain.Group, error)
	ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Group, error)
}

type GroupService struct {
	log      *slog.Logger
	users    contract.UserStore
	groups   contract.GroupStore
	guard    *blocking.Guard
	channels *runtime.Membership
	router   *runtime.Router
	maxSize  int
	now      func() time.Time
	locks    [groupLockShards]sync.Mutex
}

func NewGroupService(log *slog.Logger, users contract.UserStore, groups contract.GroupStore,
	guard *blocking.Guard, channels *runtime.Membership, router *runtime.Router, maxSize int) *GroupService {
	if maxSize <= 0 {
		maxSize = domain.DefaultMaxGroupSize
	}
	return &GroupService{
		log:      log,
		users:    users,
		groups:   groups,
		guard:    guard,
		channels: channels,
		router:   router,
		maxSize:  maxSize,
		now:      time.Now,
	}
}

// Create stores a group once every member exists and no two members have
// blocked each other. Members already online join the channel at once and
// each one receives groupCreated.
func (s *GroupService) Create(ctx context.Context, cmd domain.CreateGroupCommand) (domain.Group, error) {
	name := strings.TrimSpace(cmd.Name)
	members := domain.NormalizeMembers(cmd.CreatorID, cmd.MemberIDs)
	if name == "" || len(members) < 2 {
		return domain.Group{}, errors.ErrInvalidGroup
	}
	if len(members) > s.maxSize {
		return domain.Group{}, fmt.Errorf("%w: %d members, limit is %d", errors.ErrGroupTooLarge, len(members), s.maxSize)
	}

	profiles, err := s.profiles(ctx, members)
	if err != nil {
		return domain.Group{}, err
	}
	if err := s.guard.ValidateGroup(ctx, members); err != nil {
		return domain.Group{}, err
	}

	group, err := s.groups.Create(ctx, name, members[1:], cmd.CreatorID)
	if err != nil {
		return domain.Group{}, errors.External(err)
	}
	s.log.Info("Group created", "group_id", group.ID, "creator_id", cmd.CreatorID, "members", len(group.Members))

	s.announce(ctx, group, group.Members, profiles)
	return group, nil
}

// AddMembers extends a group the actor belongs to. The whole resulting
// member set is validated against blocks; only the added users are told.
func (s *GroupService) AddMembers(ctx context.Context, cmd domain.AddMembersCommand) (domain.Group, error) {
	// Edits of one group are serialized: the limit and the block check
	// must see the members committed by the previous edit.
	unlock := s.lock(cmd.GroupID)
	defer unlock()

	group, err := s.groups.FindByID(ctx, cmd.GroupID)
	if err != nil {
		return domain.Group{}, errors.External(err)
	}
	if !group.HasMember(cmd.ActorID) {
		return domain.Group{}, errors.ErrNotGroupMember
	}

	added := group.NewMembers(cmd.UserIDs)
	if len(added) == 0 {
		return group, nil
	}
	all := append(append([]domain.UserID{}, group.Members...), added...)
	if len(all) > s.maxSize {
		return domain.Group{}, fmt.Errorf("%w: %d members, limit is %d", errors.ErrGroupTooLarge, len(all), s.maxSize)
	}

	profiles, err := s.profiles(ctx, all)
	if err != nil {
		return domain.Group{}, err
	}
	if err := s.guard.ValidateGroup(ctx, all); err != nil {
		return domain.Group{}, err
	}

	updated, err := s.groups.AddMembers(ctx, group.ID, added)
	if err != nil {
		return domain.Group{}, errors.External(err)
	}
	s.log.Info("Group members added", "group_id", group.ID, "actor_id", cmd.ActorID, "added", len(added))

	s.announce(ctx, updated, added, profiles)
	return updated, nil
}

func (s *GroupService) lock(id domain.GroupID) func() {
	mu := &s.locks[xxhash.Sum64String(string(id))%groupLockShards]
	mu.Lock()
	return mu.Unlock
}

func (s *GroupService) ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Group, error) {
	groups, err := s.groups.FindByMember(ctx, userID)
	return groups, errors.External(err)
}

// announce joins the live connections of the recipients to the group
// channel and sends each recipient groupCreated.
func (s *GroupService) announce(ctx context.Context, group domain.Group, recipients []domain.UserID, profiles []domain.User) {
	s.channels.OnGroupMembershipChanged(group.ID, recipients)
	evt := event.GroupCreated(group, profiles, s.now())
	for _, id := range recipients {
		s.router.Route(ctx, evt.To(event.ToUser(id)))
	}
}

// profiles loads every member and fails on the first unknown id.
func (s *GroupService) profiles(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	users, err := s.users.FindMany(ctx, domain.UserFilter{IDs: ids})
	if err != nil {
		return nil, errors.External(err)
	}
	if len(users) != len(ids) {
		found := make(map[domain.UserID]bool, len(users))
		for _, u := range users {
			found[u.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, fmt.Errorf("%w: %s", errors.ErrUserNotFound, id)
			}
		}
	}
	return users, nil
}

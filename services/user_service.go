package services

import (
	"context"

	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/errors"
	"my-chat-backend/runtime"
)

type IUserService interface {
	Sidebar(ctx context.Context, me domain.UserID, query string) ([]domain.User, error)
	Presence(ctx context.Context, userID domain.UserID) (domain.PresenceState, error)
}

type UserService struct {
	users       contract.UserStore
	tracker     *runtime.Tracker
	searchLimit int
}

func NewUserService(users contract.UserStore, tracker *runtime.Tracker, searchLimit int) *UserService {
	return &UserService{users: users, tracker: tracker, searchLimit: searchLimit}
}

// Sidebar lists every other user, narrowed by query when given.
func (s *UserService) Sidebar(ctx context.Context, me domain.UserID, query string) ([]domain.User, error) {
	filter := domain.UserFilter{ExcludeID: me, Query: query}
	if query != "" {
		filter.Limit = s.searchLimit
	}
	users, err := s.users.FindMany(ctx, filter)
	return users, errors.External(err)
}

func (s *UserService) Presence(ctx context.Context, userID domain.UserID) (domain.PresenceState, error) {
	return s.tracker.Presence(ctx, userID)
}
